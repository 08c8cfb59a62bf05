package server

import (
	"errors"
	"fmt"
	"go_rdt_copy/constants"
	"go_rdt_copy/fileio"
	"go_rdt_copy/networking"
	"go_rdt_copy/server/worker"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ErrInvalidPath is returned when a requested file name escapes the root folder
var ErrInvalidPath = errors.New("invalid path")

// Server receives files one after another into a root folder
type Server struct {
	folder     string
	bufferSize int
	opts       Options
	factory    fileio.IOFactory
}

// NewServer checks root folder and prepares server
func NewServer(root string, bufferKB int, opts Options) (*Server, error) {
	folder := filepath.Clean(root)

	// Check path validity.
	info, err := os.Stat(folder)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidPath, folder)
	}
	if bufferKB <= 0 {
		bufferKB = constants.DEFAULT_WRITE_BUFFER
	}

	return &Server{
		folder:     folder,
		bufferSize: bufferKB * 1024,
		opts:       opts,
		factory:    new(fileio.BufferedFactory),
	}, nil
}

// StartListening binds UDP socket and serves transfers until the socket fails
func (s *Server) StartListening(addr string, dscp int) error {
	transport, err := networking.ListenUDP(addr, dscp)
	if err != nil {
		return fmt.Errorf("could not bind listening socket on %s: %w", addr, err)
	}
	// Close the socket when serving ends.
	defer transport.Close()

	log.WithField("addr", transport.LocalAddr()).Info("Listening")
	return s.Serve(transport)
}

// Serve receives transfers on transport one at a time
func (s *Server) Serve(t networking.Transport) error {
	for {
		if _, err := s.ReceiveOne(t); err != nil {
			if IsFatal(err) {
				return err
			}
			log.WithError(err).Warn("Transfer failed")
		}
	}
}

// ReceiveOne runs a single inbound transfer on transport
func (s *Server) ReceiveOne(t networking.Transport) (int64, error) {
	return NewReceiver(t, s.opts).ReceiveFile(s.openSink)
}

// openSink creates file under the root folder for incoming transfer
func (s *Server) openSink(meta networking.FileMeta, opts networking.TransferOptions) (Sink, error) {
	filename, err := s.localPath(meta.Name())
	if err != nil {
		return nil, err
	}

	// Create the directory if it doesn't already exist.
	if err := os.MkdirAll(filepath.Dir(filename), os.ModePerm); err != nil {
		return nil, err
	}

	sink, err := worker.NewFileSink(s.factory, filename, s.bufferSize, meta, opts)
	if err != nil {
		return nil, err
	}
	log.WithField("path", filename).Debug("Opened file")
	return sink, nil
}

// localPath maps name sent by the client to a path inside the root folder
func (s *Server) localPath(name string) (string, error) {
	// Neither localize nor To/FromSlash convert paths between OS formats.
	name = strings.ReplaceAll(name, "\\", "/")
	localized, err := filepath.Localize(name)
	if err != nil || name == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}

	filename := filepath.Join(s.folder, localized)
	if !strings.HasPrefix(filename, s.folder+string(os.PathSeparator)) {
		// We have strayed from the path of light.
		return "", fmt.Errorf("%w: %q outside %s", ErrInvalidPath, name, s.folder)
	}
	return filename, nil
}
