package main

import (
	"encoding/hex"
	"fmt"
	"go_rdt_copy/client/comms"
	"go_rdt_copy/client/worker"
	"go_rdt_copy/constants"
	"go_rdt_copy/fileio"
	"go_rdt_copy/networking"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/akamensky/argparse"
	log "github.com/sirupsen/logrus"
)

func main() {
	args := argparse.NewParser("client", constants.Title)

	bind := args.String("a", "address", &argparse.Options{Required: true, Help: "Target host address"})
	dscp := args.Int("d", "dscp", &argparse.Options{Required: false, Help: "DSCP field for QoS",
		Default: constants.DEFAULT_DSCP})
	file := args.String("f", "file", &argparse.Options{Required: true, Help: "File path"})
	maxTimeout := args.Int("m", "max-timeout", &argparse.Options{Required: false, Help: "Upper bound of adaptive timeout in ms",
		Default: int(constants.MAX_TIMEOUT / time.Millisecond)})
	omit := args.Flag("o", "omit", &argparse.Options{Help: "Omit checksum calculation"})
	port := args.Int("p", "port", &argparse.Options{Required: false, Help: "Target port",
		Default: constants.DEFAULT_PORT})
	sha := args.Flag("s", "sha", &argparse.Options{Help: "Use SHA256 checksum instead of CRC32"})
	timeout := args.Int("t", "timeout", &argparse.Options{Required: false, Help: "Static (and initial adaptive) timeout in ms",
		Default: int(constants.STATIC_TIMEOUT / time.Millisecond)})
	verbose := args.Flag("v", "verbose", &argparse.Options{Help: "Log every packet event"})
	window := args.Int("w", "window", &argparse.Options{Required: false, Help: "Window size in packets " +
		"(" + strconv.Itoa(constants.MIN_WINDOW) + "-" + strconv.Itoa(constants.MAX_WINDOW) + ")",
		Default: constants.STATIC_WINDOW_SIZE})
	compress := args.Flag("z", "compress", &argparse.Options{Help: "Compress file chunks with LZ4"})
	fixedWindow := args.Flag("", "fixed-window", &argparse.Options{Help: "Keep window size constant"})
	fixedTimeout := args.Flag("", "fixed-timeout", &argparse.Options{Help: "Do not adapt timeout to measured RTT"})
	noFastRetransmit := args.Flag("", "no-fast-retransmit", &argparse.Options{Help: "Only retransmit on timeout"})
	faults := args.Float("", "faults", &argparse.Options{Required: false, Help: "Probability (0-1) of corrupting an outgoing DATA packet",
		Default: 0.0})

	err := args.Parse(os.Args)

	if err != nil {
		fmt.Print(args.Usage(err))
		os.Exit(1)
	}

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	if *window < constants.MIN_WINDOW || *window > constants.MAX_WINDOW {
		fmt.Println("Window size must be between", constants.MIN_WINDOW, "and", constants.MAX_WINDOW)
		os.Exit(1)
	}
	if *faults < 0 || *faults > 1 {
		fmt.Println("Fault rate must be between 0 and 1")
		os.Exit(1)
	}

	fileName := filepath.Clean(*file)

	// Get file info.
	finfo, err := os.Stat(fileName)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	// Do nothing if it's a folder.
	if finfo.IsDir() {
		fmt.Println("Provided path is directory. Skipping.")
		os.Exit(0)
	}

	topts := networking.TransferOptions{HashMethod: constants.HASH_CRC32}
	if *omit {
		topts.HashMethod = constants.HASH_NONE
	} else if *sha {
		topts.HashMethod = constants.HASH_SHA256
	}
	if *compress {
		topts.Compression = constants.COMPRESSION_LZ4
	}

	hash, err := fileio.FileChecksum(fileName, topts.HashMethod)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	copy(topts.Hash[:], hash)
	if hash != nil {
		fmt.Println("Checksum", hex.EncodeToString(hash))
	}

	addr := net.JoinHostPort(*bind, strconv.Itoa(*port))
	dest, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	transport, err := networking.ListenUDP(":0", *dscp)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	defer transport.Close()

	source, err := worker.NewChunkSource(new(fileio.BufferedFactory), fileName, constants.READ_BLOCK_SIZE, *compress)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	defer source.Close()

	opts := comms.DefaultOptions()
	opts.AdaptiveWindow = !*fixedWindow
	opts.AdaptiveTimeout = !*fixedTimeout
	opts.FastRetransmit = !*noFastRetransmit
	opts.FaultInjectionRate = *faults
	opts.Timeout = time.Duration(*timeout) * time.Millisecond
	opts.MaxTimeout = time.Duration(*maxTimeout) * time.Millisecond
	opts.WindowSize = *window

	sender := comms.NewSender(transport, dest, opts)
	meta := networking.NewFileMeta(filepath.Base(fileName), finfo.Size())

	fmt.Println("Starting file transfer for", fileName, "to", addr)
	begin := time.Now()

	sent, err := comms.SendFile(sender, meta, topts, source)

	stats := sender.Stats()
	comp, total := source.Stats()
	fmt.Println("Sent", sent, "bytes in", time.Since(begin), "with", comp, "/", total, "chunks compressed")
	fmt.Printf("Packets %d, retransmitted %d, timeouts %d, fast retransmits %d, final window %d, timeout %s\n",
		stats.Sent, stats.Retransmitted, stats.Timeouts, stats.FastRetransmits, sender.Window(), sender.Timeout())

	if err != nil {
		fmt.Println("File transfer may not have completed:", err.Error())
		os.Exit(2)
	}
	fmt.Println("File transfer completed")
}
