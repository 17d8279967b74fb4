// Command httpwireserver is a minimal demonstration host for the wire
// codec: it accepts TCP connections, decodes and aggregates requests
// (C1-C6), and answers each with a fixed small response, proving the
// decoder/aggregator/config/logging stack out end to end. It is not a
// general-purpose HTTP server (routing, TLS and keep-alive tuning are
// out of scope); see the teacher's cli/ package for a client-facing
// surface this repo does not attempt to replicate.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/nicholaspei/httpwire"
	"github.com/nicholaspei/httpwire/config"
	"github.com/nicholaspei/httpwire/header"
	"github.com/nicholaspei/httpwire/logging"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	configPath := flag.String("config", "", "optional YAML config file")
	maxConns := flag.Int("max-conns", 256, "maximum concurrent connections")
	flag.Parse()

	if _, err := maxprocs.Set(); err != nil {
		fmt.Fprintf(os.Stderr, "httpwireserver: maxprocs.Set: %v\n", err)
	}

	settings := config.Settings{}
	if *configPath != "" {
		cfg, err := config.LoadPath(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "httpwireserver: load config: %v\n", err)
			os.Exit(1)
		}
		if err := cfg.Unpack(&settings); err != nil {
			fmt.Fprintf(os.Stderr, "httpwireserver: unpack config: %v\n", err)
			os.Exit(1)
		}
	}

	log, err := logging.New(logging.Options{
		Stdout:   settings.Logging.Filename == "",
		Level:    settings.Logging.Level,
		Filename: settings.Logging.Filename,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "httpwireserver: logging.New: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(log)

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Errorf("listen %s: %v", *addr, err)
		os.Exit(1)
	}
	log.Infof("listening on %s", ln.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(*maxConns)

	group.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})

	decoderCfg := settings.Decoder.DecoderConfig()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-gctx.Done():
				_ = group.Wait()
				log.Infof("shutting down")
				return
			default:
				log.Warnf("accept: %v", err)
				continue
			}
		}
		group.Go(func() error {
			defer conn.Close()
			serveConn(conn, decoderCfg, settings.Aggregator.MaxContentLengthBytes(), log)
			return nil
		})
	}
}

// serveConn decodes requests off conn one at a time (no pipelining) and
// answers each with a fixed 200 response, closing the connection when
// the request says to or the peer disconnects.
func serveConn(conn net.Conn, decoderCfg httpwire.DecoderConfig, maxContentLength int64, log logging.Logger) {
	dec := httpwire.NewDecoder(httpwire.DirectionRequest, decoderCfg)
	agg := httpwire.NewAggregator(dec, maxContentLength)

	buf := make([]byte, 64*1024)
	var objs []httpwire.Object
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			objs = objs[:0]
			if decErr := dec.Decode(buf[:n], &objs); decErr != nil {
				log.Warnf("decode: %v", decErr)
				return
			}
			for _, obj := range objs {
				full, _, procErr := agg.Process(obj)
				if procErr != nil {
					log.Warnf("aggregate: %v", procErr)
					return
				}
				if full == nil {
					continue
				}
				keepAlive := respond(conn, full)
				full.Release()
				if !keepAlive {
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

func respond(conn net.Conn, req *httpwire.FullMessage) bool {
	body := "ok\n"
	resp := httpwire.StartMessage{
		Line: httpwire.StartLine{
			Direction:  httpwire.DirectionResponse,
			Version:    req.Line.Version,
			StatusCode: 200,
			Reason:     "OK",
		},
		Headers: responseHeaders(body),
	}

	enc := &httpwire.Encoder{
		Direction:        httpwire.DirectionResponse,
		CorrelatedMethod: func() (string, bool) { return req.Line.Method, true },
	}
	var out strings.Builder
	if err := enc.EncodeStart(&out, &resp); err != nil {
		return false
	}
	chunk := httpwire.ContentChunk{Buf: httpwire.NewBuffer([]byte(body)), Last: true}
	if err := enc.EncodeChunk(&out, &chunk); err != nil {
		chunk.Buf.Release()
		return false
	}
	chunk.Buf.Release()

	if _, err := conn.Write([]byte(out.String())); err != nil {
		return false
	}
	connHeader, _ := req.Headers.Get("Connection")
	return !strings.EqualFold(connHeader, "close")
}

func responseHeaders(body string) *header.Store {
	h := header.New()
	h.AddUnchecked("Content-Type", "text/plain; charset=utf-8")
	h.AddInt("Content-Length", int64(len(body)))
	return h
}
