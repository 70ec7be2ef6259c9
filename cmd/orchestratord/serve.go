package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"goa.design/clue/log"

	"github.com/atlasrun/orchestrator/agent"
	"github.com/atlasrun/orchestrator/config"
	"github.com/atlasrun/orchestrator/containermgr"
	"github.com/atlasrun/orchestrator/httpapi"
	"github.com/atlasrun/orchestrator/model"
	"github.com/atlasrun/orchestrator/model/anthropic"
	"github.com/atlasrun/orchestrator/model/bedrock"
	"github.com/atlasrun/orchestrator/model/openai"
	"github.com/atlasrun/orchestrator/pkginstall"
	"github.com/atlasrun/orchestrator/registry"
	"github.com/atlasrun/orchestrator/team"
	"github.com/atlasrun/orchestrator/telemetry"
	"github.com/atlasrun/orchestrator/workflow"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the orchestrator daemon",
	RunE:  runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.String("listen", ":8088", "HTTP listen address")
	flags.String("data-dir", "./data", "root directory for model config, package store and publisher keys")
	flags.String("catalog-url", "", "remote package catalog base URL")
	flags.String("containerd-socket", "/run/containerd/containerd.sock", "containerd socket path")
	flags.String("containerd-namespace", "orchestrator", "containerd namespace for worker/trigger containers")
	flags.String("cni-conf-dir", "/etc/cni/net.d", "CNI network configuration directory")
	flags.Bool("debug", false, "log request/response bodies and enable debug-level logs")
	flags.Duration("worker-refresh-timeout", 5*time.Second, "per-worker tool refresh timeout at startup")
}

func runServe(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	listen, _ := flags.GetString("listen")
	dataDir, _ := flags.GetString("data-dir")
	catalogURL, _ := flags.GetString("catalog-url")
	containerdSocket, _ := flags.GetString("containerd-socket")
	containerdNamespace, _ := flags.GetString("containerd-namespace")
	cniConfDir, _ := flags.GetString("cni-conf-dir")
	debug, _ := flags.GetBool("debug")
	refreshTimeout, _ := flags.GetDuration("worker-refresh-timeout")

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if debug {
		ctx = log.Context(ctx, log.WithDebug())
	}
	logger := telemetry.NewClueLogger()

	models, err := config.New(filepath.Join(dataDir, "configs", "models.yaml"), buildModelDrivers())
	if err != nil {
		return fmt.Errorf("orchestratord: load model config: %w", err)
	}

	workers := registry.New(registry.WithLogger(logger))
	catalogPath := filepath.Join(dataDir, "configs", "workers.yaml")
	if entries, err := loadWorkerCatalogFile(catalogPath); err != nil {
		logger.Warn(ctx, "no worker catalog loaded", "path", catalogPath, "error", err.Error())
	} else {
		workers.LoadCatalog(ctx, entries, refreshTimeout)
	}

	containers, err := containermgr.New(ctx, containermgr.Options{
		SocketPath: containerdSocket,
		Namespace:  containerdNamespace,
		CNIConfDir: cniConfDir,
		StateDir:   filepath.Join(dataDir, "containers"),
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("orchestratord: connect to containerd: %w", err)
	}
	defer func() { _ = containers.Close() }()

	keyring, err := pkginstall.NewKeyring(filepath.Join(dataDir, "registry", "publishers"))
	if err != nil {
		return fmt.Errorf("orchestratord: load publisher keyring: %w", err)
	}
	catalogClient := pkginstall.NewCatalogClient(catalogURL, nil)
	installer := pkginstall.New(pkginstall.Options{
		Catalog:    catalogClient,
		Keyring:    keyring,
		Containers: containers,
		FSRoot:     filepath.Join(dataDir, "registry"),
		Logger:     logger,
	})

	engine := workflow.New(workers, workflow.WithLogger(logger))

	agentDefsDir := filepath.Join(dataDir, "agent-definitions")
	agentRuntime := agent.New(workers, config.AgentResolver{Registry: models}, agent.WithLogger(logger))

	agentLookup := fileBackedAgentLookup(agentDefsDir)
	teamRuntime := team.New(agentRuntime, agentLookup)

	srv := httpapi.New(httpapi.Dirs{
		AgentDefinitions: agentDefsDir,
		AgentTeams:       filepath.Join(dataDir, "agent-teams"),
		WorkflowsUser:    filepath.Join(dataDir, "workflows", "user"),
	},
		httpapi.WithLogger(logger),
		httpapi.WithWorkers(workers),
		httpapi.WithEngine(engine),
		httpapi.WithAgents(agentRuntime),
		httpapi.WithTeams(teamRuntime),
		httpapi.WithModels(models),
		httpapi.WithInstaller(installer),
		httpapi.WithCatalog(catalogClient),
	)

	httpSrv := &http.Server{
		Addr:              listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info(ctx, "http server listening", "addr", listen)
		errc <- httpSrv.ListenAndServe()
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("orchestratord: http server: %w", err)
		}
	case sig := <-sigc:
		logger.Info(ctx, "shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("orchestratord: graceful shutdown: %w", err)
		}
	}
	return nil
}

// buildModelDrivers registers every provider adapter this binary links
// against. Model entries in models.yaml reference one of these driver
// names.
func buildModelDrivers() *model.Registry {
	r := model.NewRegistry()
	r.Register("anthropic-style", anthropic.NewFromAPIKey)
	r.Register("openai-style", openai.NewFromAPIKey)
	r.Register("bedrock", bedrock.NewFromAPIKey)
	return r
}

// fileBackedAgentLookup adapts the on-disk agent-definitions store to
// team.AgentLookup, used when TeamRuntime dispatches to a member by
// agent_id.
func fileBackedAgentLookup(dir string) team.AgentLookup {
	return func(agentID string) (agent.Definition, bool) {
		def, err := loadAgentDefinition(dir, agentID)
		if err != nil {
			return agent.Definition{}, false
		}
		return def, true
	}
}
