package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/ductrann/heapstore/internal"
	"github.com/ductrann/heapstore/internal/bufferpool"
	"github.com/ductrann/heapstore/internal/heap"
	"github.com/ductrann/heapstore/internal/storage"
)

const usage = `usage: heapstore [flags] <command> [args]

commands:
  put <data>           insert a record, print its id
  get <page> <slot>    print a record
  del <page> <slot>    delete a record
  scan                 print every live record
  compact <page>       trim tombstoned slots from one page's directory
  inspect <page>       dump a page's header, slots and record previews
  stats                per-page record counts and free space
`

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config file")
	fileName := flag.String("file", "records", "Heap file name inside the workdir")
	flag.Parse()

	cfg, err := internal.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.Storage.Workdir, storage.FileMode0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	sm := storage.NewStorageManager()
	fs := storage.LocalFileSet{Dir: cfg.Storage.Workdir, Base: *fileName}
	bp := bufferpool.NewPool(sm, fs, cfg.Storage.PoolPages)

	f, err := heap.Open(*fileName, sm, fs, bp)
	if err != nil {
		log.Fatalf("Failed to open heap file: %v", err)
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := run(f, bp, args); err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}

	if err := f.Flush(); err != nil {
		log.Fatalf("Failed to flush: %v", err)
	}
}

func run(f *heap.File, bp bufferpool.Manager, args []string) error {
	switch cmd, rest := args[0], args[1:]; cmd {
	case "put":
		if len(rest) != 1 {
			return fmt.Errorf("put wants 1 argument, got %d", len(rest))
		}
		rid, err := f.Insert([]byte(rest[0]))
		if err != nil {
			return err
		}
		fmt.Println(rid)
		return nil

	case "get":
		rid, err := parseRid(rest)
		if err != nil {
			return err
		}
		rec, err := f.Get(rid)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", rec)
		return nil

	case "del":
		rid, err := parseRid(rest)
		if err != nil {
			return err
		}
		return f.Delete(rid)

	case "scan":
		return f.Scan(func(rid storage.RecordID, rec []byte) error {
			fmt.Printf("%s\t%s\n", rid, rec)
			return nil
		})

	case "compact":
		id, err := parsePage(rest)
		if err != nil {
			return err
		}
		return f.Compact(id)

	case "inspect":
		id, err := parsePage(rest)
		if err != nil {
			return err
		}
		p, err := bp.GetPage(id)
		if err != nil {
			return err
		}
		fmt.Print(p.DebugString())
		return bp.Unpin(p, false)

	case "stats":
		fmt.Printf("pages: %d\n", f.PageCount)
		for id := storage.PageID(0); int32(id) < f.PageCount; id++ {
			p, err := bp.GetPage(id)
			if err != nil {
				return err
			}
			fmt.Printf("page %d: live=%d slots=%d free=%dB\n",
				id, p.NumRecords(), p.SlotCount(), p.AvailableSpace())
			if err := bp.Unpin(p, false); err != nil {
				return err
			}
		}
		return nil

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func parsePage(args []string) (storage.PageID, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("want a page number, got %d arguments", len(args))
	}
	n, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad page number %q", args[0])
	}
	return storage.PageID(n), nil
}

func parseRid(args []string) (storage.RecordID, error) {
	if len(args) != 2 {
		return storage.RecordID{}, fmt.Errorf("want <page> <slot>, got %d arguments", len(args))
	}
	page, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		return storage.RecordID{}, fmt.Errorf("bad page number %q", args[0])
	}
	slot, err := strconv.ParseInt(args[1], 10, 32)
	if err != nil {
		return storage.RecordID{}, fmt.Errorf("bad slot number %q", args[1])
	}
	return storage.RecordID{PageID: storage.PageID(page), SlotNo: int32(slot)}, nil
}
