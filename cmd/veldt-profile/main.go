// Profiling:
// go build ./cmd/veldt-profile
// go tool pprof -http=":8000" -nodefraction=0.001 ./veldt-profile cpu.pprof

package main

import (
	"flag"

	"github.com/pkg/profile"
	"go.uber.org/zap"

	"github.com/veldt-engine/veldt/internal/core/ecs"
	"github.com/veldt-engine/veldt/internal/core/world"
)

type position struct{ X, Y float64 }
type velocity struct{ DX, DY float64 }

const (
	kindPosition ecs.Kind = "position"
	kindVelocity ecs.Kind = "velocity"
)

func main() {
	entities := flag.Int("entities", 10000, "entities to spawn")
	frames := flag.Int("frames", 2000, "frames to simulate")
	mem := flag.Bool("mem", false, "profile allocations instead of CPU")
	flag.Parse()

	opts := []func(*profile.Profile){profile.ProfilePath("."), profile.NoShutdownHook}
	if *mem {
		opts = append(opts, profile.MemProfileAllocs)
	} else {
		opts = append(opts, profile.CPUProfile)
	}
	p := profile.Start(opts...)
	run(*entities, *frames)
	p.Stop()
}

func run(numEntities, frames int) {
	w := world.New(world.Options{Logger: zap.NewNop()})

	sys := world.System{
		Label: "movement",
		Phase: world.PhaseUpdate,
		Queries: map[string]ecs.Query{
			"movers": {With: []ecs.Kind{kindPosition, kindVelocity}},
		},
		Process: func(w *world.World, dt float64, results world.Results) {
			for _, id := range results["movers"] {
				vel, ok := ecs.Get[velocity](w.Entities, id, kindVelocity)
				if !ok {
					continue
				}
				_ = w.Entities.Mutate(id, kindPosition, func(v any) {
					p := v.(*position)
					p.X += vel.DX * dt
					p.Y += vel.DY * dt
				})
			}
		},
	}
	if err := w.AttachSystem(sys); err != nil {
		panic(err)
	}

	for i := 0; i < numEntities; i++ {
		w.Spawn(map[ecs.Kind]any{
			kindPosition: &position{X: float64(i)},
			kindVelocity: velocity{DX: 1, DY: 1},
		})
	}

	const dt = 1.0 / 60.0
	for i := 0; i < frames; i++ {
		w.Update(dt)
	}
}
