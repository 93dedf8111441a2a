// Copyright (c) 2022 The eredis Authors
//
// Licensed under the Apache License, Version 2.0 (the "License"): you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations
// under the License.

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/gencer/eredis/config"
	"github.com/gencer/eredis/core"
	"github.com/gencer/eredis/core/hostwatch"
	"github.com/gencer/eredis/core/pkg/logging"
	"github.com/gencer/eredis/core/pkg/redis"
	"github.com/gencer/eredis/web"
)

var (
	configPath      = flag.String("p", "conf", "Config file path")
	basicConfigFile = flag.String("c", "eredis.yaml", "Basic config filename")
	pipe            = flag.Bool("pipe", false, "Fan out inline commands read from stdin")
	version         = flag.Bool("v", false, "Show version")
	help            = flag.Bool("h", false, "Show usage info")
)

var (
	CommitSHA string
	Tag       string
	BuildTime string
)

func init() {
	if len(Tag) < 1 {
		Tag = "unknown"
	}
	if len(CommitSHA) < 1 {
		CommitSHA = "unknown"
	}
	if len(BuildTime) < 1 {
		BuildTime = "unknown"
	}
}

const banner string = `
_____________________________________
__  ____/__  __ \__  ____/__  __ \__(_)_______
_  __/  __  /_/ /_  __/  __  / / /_  /__  ___/
/ /___  _  _, _/_  /___  _  /_/ /_  / _(__  )
\____/  /_/ |_| /_____/  /_____/ /_/  /____/

`

func parseCli() {
	flag.Parse()
	if *version {
		fmt.Printf("version: %s\ncommit: %s\ntime: %s\n", Tag, CommitSHA, BuildTime)
		os.Exit(0)
	}
	if *help {
		flag.Usage()
		os.Exit(0)
	}
}

func main() {
	parseCli()

	cfg, err := config.LoadConfig(path.Join(*configPath, *basicConfigFile))
	if err != nil {
		logging.Errorf("parse config file err:%v", err)
		return
	}

	// Initialization Logger
	if err = logging.InitializeLogger(
		logging.WithPath(cfg.LogPath),
		logging.WithExpireDay(cfg.LogExpireDay),
		logging.WithLogLevel(cfg.LogLevel),
	); err != nil {
		logging.Errorf("failed to initialize logger, err: %s", err)
		return
	}

	fmt.Print(banner)
	fmt.Printf("eredis version: %s, pid: %d\n", Tag, syscall.Getpid())
	logging.Infof("eredis started, pid: %d, version: %s", syscall.Getpid(), Tag)

	var opts []core.Option
	if cfg.Mirror.TimeoutMs > 0 {
		opts = append(opts, core.WithTimeout(time.Duration(cfg.Mirror.TimeoutMs)*time.Millisecond))
	}
	if cfg.Mirror.ReaderMax > 0 {
		opts = append(opts, core.WithReaderMax(cfg.Mirror.ReaderMax))
	}
	if cfg.Mirror.ReaderRetry > 0 {
		opts = append(opts, core.WithReaderRetry(cfg.Mirror.ReaderRetry))
	}
	client := core.New(opts...)

	for _, addr := range cfg.Mirror.Hosts {
		target, port := splitHostPort(addr)
		if err := client.AddHost(target, port); err != nil {
			logging.Errorf("failed to add host %s, err: %s", addr, err)
			return
		}
	}
	if len(cfg.Mirror.HostFile) > 0 {
		n, err := client.LoadHostFile(cfg.Mirror.HostFile)
		if err != nil {
			logging.Errorf("failed to load host file %s, err: %s", cfg.Mirror.HostFile, err)
			return
		}
		logging.Infof("loaded %d hosts from %s", n, cfg.Mirror.HostFile)

		// Edits of the host file cannot be applied live, surface them.
		if _, err := hostwatch.Watch(cfg.Mirror.HostFile); err != nil {
			logging.Errorf("failed to watch host file, err: %s", err)
			return
		}
	}

	if cfg.WebPort > 0 {
		// Initialization http server
		web.Tag, web.CommitSHA = Tag, CommitSHA
		addr := fmt.Sprintf(":%d", cfg.WebPort)
		gin.SetMode(gin.ReleaseMode)
		ginSrv := gin.New()
		web.Init(ginSrv, client)
		httpSrv := &http.Server{Handler: ginSrv, Addr: addr}
		go func() {
			if err = httpSrv.ListenAndServe(); err != nil {
				logging.Errorf("failed to start http server, err: %s", err)
				return
			}
		}()
	}

	if err := client.Start(); err != nil {
		logging.Errorf("eredis run failed: %s", err)
		return
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	if *pipe {
		go pipeLoop(client, cfg.Mirror.PipeRate, sig)
	}

	<-sig
	logging.Infof("eredis shutdown, pid: %d", syscall.Getpid())
	client.Shutdown()
	client.Close()
}

// pipeLoop feeds stdin commands into the fan-out queue, redis-cli inline
// syntax, one command per line.
func pipeLoop(client *core.Client, rps int, sig chan<- os.Signal) {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), rps)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		cmd := redis.FormatInline(scanner.Text())
		if cmd == nil {
			continue
		}
		if limiter != nil {
			if err := limiter.Wait(context.Background()); err != nil {
				break
			}
		}
		client.Write(cmd)
	}
	if err := scanner.Err(); err != nil {
		logging.Errorf("stdin read err: %s", err)
	}
	// EOF on stdin ends pipe mode and the process.
	sig <- syscall.SIGTERM
}

func splitHostPort(addr string) (string, int) {
	if i := strings.LastIndexByte(addr, ':'); i >= 0 {
		port, err := strconv.Atoi(addr[i+1:])
		if err == nil {
			return addr[:i], port
		}
	}
	return addr, 0
}
