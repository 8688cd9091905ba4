// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Binary p9mount attaches to a virtio-9p device and lists a directory,
// as a small end-to-end exercise of the p9/virtio packages.
//
// To use against a real device, register it with a virtio.Registry
// under its mount tag before calling Bind; this binary always
// demonstrates the whole path against an in-process demo server
// registered under -tag.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/u-root/uio/ulog"

	"github.com/virtio9p/client9p/options"
	"github.com/virtio9p/client9p/p9"
	"github.com/virtio9p/client9p/virtio"
)

var (
	verbose = flag.Bool("v", false, "verbose logging")
	optstr  = flag.String("o", "trans=virtio,version=9p2000.L", "mount options")
	tag     = flag.String("tag", "demo0", "virtio mount tag to bind")
	dir     = flag.String("dir", "/", "directory to list after attaching")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [options]\n\noptions:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	mount, err := options.Parse(*optstr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "p9mount: %v\n", err)
		os.Exit(2)
	}

	logger := ulog.Null
	if *verbose {
		logger = ulog.Log
	}

	registry := virtio.NewRegistry()
	device := p9.NewDemoServer(*tag)
	if err := registry.Register(device); err != nil {
		fmt.Fprintf(os.Stderr, "p9mount: register: %v\n", err)
		os.Exit(1)
	}

	transport, err := registry.Bind(*tag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "p9mount: bind %q: %v\n", *tag, err)
		os.Exit(1)
	}
	defer transport.Close()

	msize := mount.MSize
	if msize == 0 {
		msize = p9.DefaultMSize
	}
	sess, err := p9.NewSession(p9.WrapVirtioTransport(transport), msize, mount.Version, p9.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "p9mount: negotiate: %v\n", err)
		os.Exit(1)
	}
	defer sess.Close()

	ctx := context.Background()
	root, err := sess.Attach(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "p9mount: attach: %v\n", err)
		os.Exit(1)
	}
	defer root.Clunk(ctx)

	target := root
	if *dir != "/" && *dir != "" {
		var names []string
		for _, n := range splitPath(*dir) {
			names = append(names, n)
		}
		target, err = root.Walk(ctx, names...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "p9mount: walk %q: %v\n", *dir, err)
			os.Exit(1)
		}
		defer target.Clunk(ctx)
	}

	if err := target.Lopen(ctx, 0); err != nil {
		fmt.Fprintf(os.Stderr, "p9mount: open: %v\n", err)
		os.Exit(1)
	}

	entries, err := target.ReadDir(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "p9mount: readdir: %v\n", err)
		os.Exit(1)
	}
	for _, e := range entries {
		attr, err := entryAttr(ctx, target, e.Name)
		if err != nil {
			fmt.Printf("%-20s %v\n", e.Name, err)
			continue
		}
		fmt.Printf("%-20s %s\n", e.Name, humanize.Bytes(attr.Size))
	}
}

func entryAttr(ctx context.Context, dir *p9.Handle, name string) (p9.Attr, error) {
	child, err := dir.Walk(ctx, name)
	if err != nil {
		return p9.Attr{}, err
	}
	defer child.Clunk(ctx)
	return child.GetAttr(ctx, p9.AttrMaskAll)
}

func splitPath(p string) []string {
	var out []string
	start := 0
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			if i > start {
				out = append(out, p[start:i])
			}
			start = i + 1
		}
	}
	if start < len(p) {
		out = append(out, p[start:])
	}
	return out
}
