package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/gekko3d/scenegeom"
	"github.com/gekko3d/scenegeom/meshrt/rt/core"
	"github.com/gekko3d/scenegeom/meshrt/rt/gpu"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

type swapchain struct {
	frame, images uint32
}

func (s *swapchain) FrameIndex() uint32          { return s.frame }
func (s *swapchain) SwapchainImageCount() uint32 { return s.images }
func (s *swapchain) advance()                    { s.frame = (s.frame + 1) % s.images }

type options struct {
	configPath string
	debug      bool
	frames     int
	models     int
	noCull     bool
	useGPU     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to settings file")
	flag.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flag.IntVar(&opts.frames, "frames", 120, "Number of frames to run")
	flag.IntVar(&opts.models, "models", 8, "Number of cube fields to load")
	flag.BoolVar(&opts.noCull, "nocull", false, "Disable frustum culling")
	flag.BoolVar(&opts.useGPU, "webgpu", false, "Upload through a headless webgpu device")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run drives the geometry through opts.frames frames of an orbiting camera.
// Every acquired resource is released before it returns.
func run(opts options) error {
	settings := scenegeom.DefaultSettings()
	if opts.configPath != "" {
		var err error
		settings, err = scenegeom.LoadSettings(opts.configPath)
		if err != nil {
			return err
		}
	}
	if opts.noCull {
		settings.Culling.Disabled = true
	}

	log := scenegeom.NewLogger(settings.Logging)
	defer log.Sync()
	log.SetDebug(opts.debug)

	var device gpu.Device
	if opts.useGPU {
		dev, release, err := headlessDevice()
		if err != nil {
			return fmt.Errorf("webgpu: %w", err)
		}
		defer release()
		device = gpu.NewWGPUDevice(dev)
	} else {
		device = gpu.NewHostDevice()
	}

	core.InitDefaults(nil)
	defer core.TeardownDefaults()

	geom, err := scenegeom.NewGeometry(device, settings, log)
	if err != nil {
		return err
	}
	defer geom.Close()

	for i := 0; i < opts.models; i++ {
		m, err := cubeRing(i)
		if err != nil {
			return fmt.Errorf("model %d: %w", i, err)
		}
		if err := geom.AddModel(m); err != nil {
			return err
		}
	}

	sc := &swapchain{images: uint32(settings.Frames.SwapchainImages)}
	if err := geom.UploadBuffers(int(sc.images)); err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	cam := core.NewCameraState()
	var visible, drawn int
	for f := 0; f < opts.frames; f++ {
		angle := float64(f) / float64(max(opts.frames, 1)) * 2 * math.Pi
		cam.Eye = mgl32.Vec3{float32(40 * math.Sin(angle)), float32(-40 * math.Cos(angle)), 10}
		cam.LookAt(mgl32.Vec3{0, 0, 0})
		cam.Update()

		if err := geom.UpdateGeometry(sc, cam); err != nil {
			return fmt.Errorf("frame %d: %w", f, err)
		}
		visible += geom.Stats().Visible
		if geom.HasAnyVisibleDraws() {
			drawn++
		}
		sc.advance()
	}

	log.Infof("%d frames, %d primitives, %d frames with draws, %.1f visible per frame",
		opts.frames, geom.PrimitivesCount(), drawn, float64(visible)/float64(max(opts.frames, 1)))
	return nil
}

// cubeRing builds a parent node carrying a ring of cubes and a child node
// sharing the same mesh one level up.
func cubeRing(i int) (*core.Model, error) {
	const count = 12
	centers := make([]mgl32.Vec3, count)
	for c := range centers {
		a := float64(c) / count * 2 * math.Pi
		centers[c] = mgl32.Vec3{float32(4 * math.Cos(a)), float32(4 * math.Sin(a)), 0}
	}
	ring, err := core.NewCubeField(fmt.Sprintf("ring-%d", i), centers,
		[]core.RenderType{core.RenderOpaque, core.RenderOpaque, core.RenderAlphaCut, core.RenderAlphaBlend},
		mgl32.Vec4{0.8, 0.8, 0.8, 1})
	if err != nil {
		return nil, err
	}

	m, err := core.NewModel(core.ModelData{
		Label:    ring.Label,
		Vertices: ring.Vertices,
		Indices:  ring.Indices,
		Meshes:   ring.Meshes,
		Nodes: []core.NodeDesc{
			{Name: "base", Parent: -1, Mesh: 0},
			{Name: "upper", Parent: 0, Mesh: 0, Local: mgl32.Translate3D(0, 0, 3)},
		},
	})
	if err != nil {
		return nil, err
	}

	a := float64(i) / 8 * 2 * math.Pi
	trs := core.IdentityTRS()
	trs.Translation = mgl32.Vec3{float32(20 * math.Cos(a)), float32(20 * math.Sin(a)), 0}
	trs.Rotation = mgl32.QuatRotate(float32(a), mgl32.Vec3{0, 0, 1})
	m.SetMatrix(trs.Matrix())
	m.SetRenderReady(true)
	return m, nil
}

func headlessDevice() (*wgpu.Device, func(), error) {
	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, nil, err
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, nil, err
	}
	return device, func() {
		device.Release()
		adapter.Release()
		instance.Release()
	}, nil
}
