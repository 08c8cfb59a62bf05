package main

import (
	"fmt"
	"go_rdt_copy/constants"
	server "go_rdt_copy/server/controller"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/akamensky/argparse"
	log "github.com/sirupsen/logrus"
)

func main() {
	args := argparse.NewParser("server", constants.Title)

	buffer := args.Int("c", "buffer", &argparse.Options{Required: false, Help: "File write buffer size in KB",
		Default: constants.DEFAULT_WRITE_BUFFER})
	dscp := args.Int("d", "dscp", &argparse.Options{Required: false, Help: "DSCP field for QoS",
		Default: constants.DEFAULT_DSCP})
	idle := args.Int("i", "idle", &argparse.Options{Required: false, Help: "Abort transfer after this many seconds of silence (0 waits forever)",
		Default: int(constants.DEFAULT_IDLE / time.Second)})
	bind := args.String("l", "listen", &argparse.Options{Required: false, Help: "Listen on address",
		Default: "0.0.0.0"})
	port := args.Int("p", "port", &argparse.Options{Required: false, Help: "Listening port",
		Default: constants.DEFAULT_PORT})
	path := args.String("r", "root", &argparse.Options{Required: false, Help: "Root path for storing files",
		Default: "receive"})
	timeout := args.Int("t", "timeout", &argparse.Options{Required: false, Help: "Wait for FIN acknowledgement in ms",
		Default: int(constants.STATIC_TIMEOUT / time.Millisecond)})
	verbose := args.Flag("v", "verbose", &argparse.Options{Help: "Log every packet event"})

	err := args.Parse(os.Args)

	if err != nil {
		fmt.Print(args.Usage(err))
		os.Exit(1)
	}

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	if err := os.MkdirAll(*path, os.ModePerm); err != nil {
		fmt.Println("Invalid root folder -", err.Error())
		os.Exit(1)
	}

	opts := server.Options{
		Timeout:     time.Duration(*timeout) * time.Millisecond,
		IdleTimeout: time.Duration(*idle) * time.Second,
	}

	srv, err := server.NewServer(*path, *buffer, opts)
	if err != nil {
		fmt.Println("Invalid root folder -", err.Error())
		os.Exit(1)
	}

	bindTo := net.JoinHostPort(*bind, strconv.Itoa(*port))

	if err := srv.StartListening(bindTo, *dscp); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
}
