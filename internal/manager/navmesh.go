package manager

import (
	"maps"
	"slices"

	"github.com/standardbeagle/tdwctl/internal/addon"
	"github.com/standardbeagle/tdwctl/internal/command"
	"github.com/standardbeagle/tdwctl/internal/output"
)

// NavMeshConfig tunes how objects become nav mesh obstacles.
type NavMeshConfig struct {
	// Exclude lists object ids that never become obstacles.
	Exclude []int32
	// MaxY skips objects whose bottom is above this height.
	MaxY float32
	// ExcludeArea skips objects with a smaller x*z footprint.
	ExcludeArea float32
	// SmallArea is the footprint below which non-kinematic objects use
	// SmallAreaScale.
	SmallArea      float32
	SmallAreaScale float32
	LargeAreaScale float32
	// RoundnessThreshold picks a box shape when the ratio of the shorter to
	// the longer footprint side is below it, a capsule otherwise.
	RoundnessThreshold float32
}

// DefaultNavMeshConfig returns the standard obstacle parameters.
func DefaultNavMeshConfig() NavMeshConfig {
	return NavMeshConfig{
		MaxY:               0.1,
		ExcludeArea:        0.05,
		SmallArea:          1,
		SmallAreaScale:     1,
		LargeAreaScale:     1.25,
		RoundnessThreshold: 0.95,
	}
}

// minBottom skips objects that fell below the floor.
const minBottom = -0.1

// Path is a nav mesh path answered by the build.
type Path struct {
	ID     int32
	State  output.PathState
	Points []output.Vector3
}

// NavMesh turns the scene's objects into nav mesh obstacles, bakes the nav
// mesh, and collects path queries. Baking takes two cycles: the first
// response carries bounds and rigidbody data, the second executes the
// obstacle and bake commands.
type NavMesh struct {
	addon.Base

	cfg   NavMeshConfig
	baked bool

	nextPathID int32
	paths      map[int32]Path
}

// NewNavMesh creates a NavMesh.
func NewNavMesh(cfg NavMeshConfig) *NavMesh {
	return &NavMesh{cfg: cfg, paths: make(map[int32]Path)}
}

// Name implements addon.Named.
func (n *NavMesh) Name() string { return "nav_mesh" }

// InitializationCommands implements addon.AddOn.
func (n *NavMesh) InitializationCommands() []command.Command {
	return []command.Command{
		command.Send("send_bounds", command.Always),
		command.Send("send_static_rigidbodies", command.Once),
		command.Send("send_static_robots", command.Once),
	}
}

// OnSend implements addon.AddOn.
func (n *NavMesh) OnSend(resp output.Response) error {
	if n.baked {
		return resp.Each(func(d output.Data) error {
			if p, ok := d.(*output.NavMeshPath); ok {
				n.paths[p.ID()] = Path{ID: p.ID(), State: p.State(), Points: p.Path()}
			}
			return nil
		})
	}
	n.baked = true

	type footprint struct {
		area float32
		box  bool
	}
	var (
		order      []int32
		footprints = make(map[int32]footprint)
		kinematic  = make(map[int32]bool)
		robots     = []int32{}
	)
	err := resp.Each(func(d output.Data) error {
		switch x := d.(type) {
		case *output.Bounds:
			for i := range x.Num() {
				id := x.ID(i)
				bottom := x.Bottom(i).Y
				if bottom <= minBottom || bottom > n.cfg.MaxY || slices.Contains(n.cfg.Exclude, id) {
					continue
				}
				size := x.Size(i)
				area := size.X * size.Z
				if area < n.cfg.ExcludeArea {
					continue
				}
				roundness := size.X / size.Z
				if size.X > size.Z {
					roundness = size.Z / size.X
				}
				if _, seen := footprints[id]; !seen {
					order = append(order, id)
				}
				footprints[id] = footprint{area: area, box: roundness < n.cfg.RoundnessThreshold}
			}
		case *output.StaticRigidbodies:
			for i := range x.Num() {
				kinematic[x.ID(i)] = x.Kinematic(i)
			}
		case *output.StaticRobot:
			robots = append(robots, x.ID())
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range order {
		kin, ok := kinematic[id]
		if !ok {
			continue
		}
		fp := footprints[id]
		scale := n.cfg.LargeAreaScale
		if fp.area < n.cfg.SmallArea && !kin {
			scale = n.cfg.SmallAreaScale
		}
		shape := "capsule"
		if fp.box {
			shape = "box"
		}
		n.Queue(command.New("make_nav_mesh_obstacle", command.Params{
			"id":         id,
			"carve_type": "all",
			"scale":      scale,
			"shape":      shape,
		}))
	}
	n.Queue(command.New("bake_nav_mesh", command.Params{"ignore": robots}))
	return nil
}

// Baked reports whether the obstacle and bake commands have been queued.
func (n *NavMesh) Baked() bool { return n.baked }

// RequestPath queues a path query and returns its id. The answer arrives in
// Paths one cycle after the query is sent.
func (n *NavMesh) RequestPath(origin, destination command.Vector3) int32 {
	n.nextPathID++
	id := n.nextPathID
	n.Queue(command.New("send_nav_mesh_path", command.Params{
		"origin":      origin,
		"destination": destination,
		"id":          id,
	}))
	return id
}

// Paths returns every path answered so far, keyed by request id.
func (n *NavMesh) Paths() map[int32]Path {
	return maps.Clone(n.paths)
}

// Reset implements addon.Resetter. The next response bakes again.
func (n *NavMesh) Reset() {
	n.baked = false
	clear(n.paths)
	n.SetInitialized(false)
}

// Exclude replaces the excluded object ids. It takes effect on the next bake.
func (n *NavMesh) Exclude(ids ...int32) {
	n.cfg.Exclude = slices.Clone(ids)
}
