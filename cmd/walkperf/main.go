package main

import (
	"context"
	"fmt"

	"github.com/bingoohuang/gg/pkg/ctl"
	"github.com/bingoohuang/gg/pkg/fla9"
	"github.com/bingoohuang/gg/pkg/osx"
	"github.com/bingoohuang/gg/pkg/sigx"
	"github.com/bingoohuang/walkperf"
	"github.com/bingoohuang/walkperf/pkg/bench"
	"github.com/bingoohuang/walkperf/pkg/store"
	_ "github.com/joho/godotenv/autoload"
)

var (
	pVersion = fla9.Bool("version", false, "Show version and exit")
	pInit    = fla9.Bool("init", false, "Create initial ctl and exit")
	pList    = fla9.Bool("list", false, "List the registered benchmarks and exit")
	pDump    = fla9.String("dump", "", "Copy the inputs of the store into a snapshot file (.json or .msgpack) and exit")
)

func init() {
	fla9.Parse()
	ctl.Config{Initing: *pInit, PrintVersion: *pVersion}.ProcessInit()
	sigx.RegisterSignalProfile()
}

func main() {
	ctx := context.Background()

	switch {
	case *pList:
		for _, name := range walkperf.Registered() {
			fmt.Println(name)
		}
	case *pDump != "":
		osx.ExitIfErr(dump(ctx, *pDump))
	default:
		walkperf.StartBench(ctx)
	}
}

// dump snapshots everything the benchmarks draw from: keywords, places and the city and world locations.
func dump(ctx context.Context, path string) error {
	c, err := walkperf.NewConfig()
	if err != nil {
		return err
	}

	return store.With(ctx, c.Opener, func(s store.Store) error {
		snap, err := store.TakeSnapshot(ctx, s, append(bench.CityBBoxes(), store.World)...)
		if err != nil {
			return err
		}
		if err := store.WriteSnapshot(path, snap); err != nil {
			return err
		}

		fmt.Printf("snapshot %s: %d keywords, %d places, %d regions\n",
			path, len(snap.Words), len(snap.Places), len(snap.Regions))
		return nil
	})
}
