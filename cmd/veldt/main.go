package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/veldt-engine/veldt/internal/asset"
	"github.com/veldt-engine/veldt/internal/config"
	"github.com/veldt-engine/veldt/internal/core/ecs"
	"github.com/veldt-engine/veldt/internal/core/resource"
	"github.com/veldt-engine/veldt/internal/core/world"
	"github.com/veldt-engine/veldt/internal/logging"
	"github.com/veldt-engine/veldt/internal/screen"
	"github.com/veldt-engine/veldt/internal/scripting"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config
	cfgPath := ""
	if p := os.Getenv("VELDT_CONFIG"); p != "" {
		cfgPath = p
	} else if _, err := os.Stat("config/veldt.toml"); err == nil {
		cfgPath = "config/veldt.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// 3. Assets and screens
	assets := asset.NewLibrary(cfg.Assets.Dir, log)
	screens := screen.NewStack()
	screens.Push("game")

	// 4. Create the world
	w := world.New(world.Options{
		Logger:        log,
		Assets:        assets,
		Screens:       screens,
		FixedTimestep: cfg.Loop.FixedTimestep,
		MaxFixedSteps: cfg.Loop.MaxFixedSteps,
	})

	// 5. Shared resources
	if err := registerResources(w); err != nil {
		return fmt.Errorf("register resources: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = w.Resources.Initialize(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("init resources: %w", err)
	}

	// 6. Built-in systems
	if err := attachDemoSystems(w); err != nil {
		return fmt.Errorf("attach systems: %w", err)
	}

	// 7. Lua scripting
	if cfg.Scripting.Enabled {
		engine, err := scripting.NewEngine(cfg.Scripting.Dir, w, log)
		if err != nil {
			return fmt.Errorf("lua engine: %w", err)
		}
		defer engine.Close()
		log.Info("scripting enabled", zap.String("dir", cfg.Scripting.Dir))
	}

	spawnDemoEntities(w)

	// 8. Frame loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Loop.TickRate)
	defer ticker.Stop()

	log.Info("frame loop started",
		zap.Duration("tick", cfg.Loop.TickRate),
		zap.Float64("fixed_step", cfg.Loop.FixedTimestep))

	prev := time.Now()
	for {
		select {
		case now := <-ticker.C:
			dt := now.Sub(prev).Seconds()
			prev = now
			w.Update(dt)
		case sig := <-shutdownCh:
			log.Info("shutdown signal", zap.String("signal", sig.String()))
			dctx, dcancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := w.Resources.Dispose(dctx)
			dcancel()
			if err != nil {
				log.Error("resource dispose", zap.Error(err))
			}
			log.Info("stopped", zap.Uint64("frames", w.Frame()))
			return nil
		}
	}
}

// frameStats is a resource shared by the demo systems.
type frameStats struct {
	Moved int
}

func registerResources(w *world.World) error {
	return w.Resources.Register("stats", resource.Value(&frameStats{}))
}

// position and velocity are the components the demo simulation runs on.
type position struct{ X, Y float64 }
type velocity struct{ DX, DY float64 }

const (
	kindPosition ecs.Kind = "position"
	kindVelocity ecs.Kind = "velocity"
)

func attachDemoSystems(w *world.World) error {
	movement := world.System{
		Label:    "movement",
		Phase:    world.PhaseUpdate,
		Priority: 10,
		Groups:   []string{"sim"},
		Queries: map[string]ecs.Query{
			"movers": {With: []ecs.Kind{kindPosition, kindVelocity}},
		},
		Process: func(w *world.World, dt float64, results world.Results) {
			stats := resource.MustAs[*frameStats](w.Resources, "stats")
			for _, id := range results["movers"] {
				vel, ok := ecs.Get[velocity](w.Entities, id, kindVelocity)
				if !ok {
					continue
				}
				err := w.Entities.Mutate(id, kindPosition, func(v any) {
					p := v.(*position)
					p.X += vel.DX * dt
					p.Y += vel.DY * dt
				})
				if err == nil {
					stats.Moved++
				}
			}
		},
	}
	if err := w.AttachSystem(movement); err != nil {
		return err
	}

	report := world.System{
		Label:    "report",
		Phase:    world.PhaseRender,
		Priority: 0,
		Groups:   []string{"sim"},
		Process: func(w *world.World, dt float64, _ world.Results) {
			if w.Frame()%600 != 0 {
				return
			}
			stats := resource.MustAs[*frameStats](w.Resources, "stats")
			w.Logger().Info("sim report",
				zap.Uint64("frame", w.Frame()),
				zap.Int("entities", w.Entities.Len()),
				zap.Int("moved", stats.Moved))
		},
	}
	return w.AttachSystem(report)
}

func spawnDemoEntities(w *world.World) {
	for i := 0; i < 8; i++ {
		w.Spawn(map[ecs.Kind]any{
			kindPosition: &position{X: float64(i), Y: 0},
			kindVelocity: velocity{DX: 1, DY: 0.5},
		})
	}
}
