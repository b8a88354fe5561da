// caexample demonstrates connecting to a channel, reading and writing
// its value, and watching it for changes.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"goca/internal/logger"
	"goca/pkg/ca"
	"goca/pkg/config"
	"goca/pkg/types"
)

func main() {
	name := flag.String("channel", "demo:counter", "channel name to connect to")
	addrList := flag.String("addr-list", "", "EPICS_CA_ADDR_LIST override (space-separated host:port)")
	kind := flag.String("kind", "double", "value kind: byte|short|int|float|double|string")
	write := flag.Float64("write", 0, "if non-zero, put this value before monitoring")
	flag.Parse()

	k, err := parseKind(*kind)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, err := ca.New(ca.Options{
		Logger: logger.NewDefaultLogger(logger.LevelInfo),
		Properties: config.Properties{
			"EPICS_CA_ADDR_LIST": *addrList,
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ca.New: %v\n", err)
		os.Exit(1)
	}
	defer ctx.Close()

	ch := ctx.CreateChannel(*name, k)
	defer ch.Close()

	ch.AddConnectionListener(func(connected bool) {
		fmt.Printf("%s: connected=%v\n", *name, connected)
	})

	if err := ch.Connect(5 * time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "connect %s: %v\n", *name, err)
		os.Exit(1)
	}

	props := ch.GetProperties()
	fmt.Printf("%s: native type %v, element count %v\n", *name, props["nativeType"], props["nativeElementCount"])

	if *write != 0 {
		if err := ch.Put(types.NewDouble(*write)); err != nil {
			fmt.Fprintf(os.Stderr, "put %s: %v\n", *name, err)
		}
	}

	v, err := ch.Get()
	if err != nil {
		fmt.Fprintf(os.Stderr, "get %s: %v\n", *name, err)
	} else {
		fmt.Printf("%s: value = %+v\n", *name, v)
	}

	mon, err := ch.AddValueMonitor(func(b types.Bundle) {
		if b == nil {
			fmt.Printf("%s: connection lost\n", *name)
			return
		}
		fmt.Printf("%s: update = %+v\n", *name, b.Value())
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "monitor %s: %v\n", *name, err)
		os.Exit(1)
	}
	defer mon.Close()

	fmt.Println("watching for updates, ctrl-C to exit")
	select {}
}

func parseKind(s string) (types.Kind, error) {
	switch s {
	case "byte":
		return types.KindByte, nil
	case "short":
		return types.KindShort, nil
	case "int":
		return types.KindInt, nil
	case "float":
		return types.KindFloat, nil
	case "double":
		return types.KindDouble, nil
	case "string":
		return types.KindString, nil
	default:
		return 0, fmt.Errorf("unknown kind %q", s)
	}
}
