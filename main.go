package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/pump-pi/pump-pi/controller"
	"github.com/pump-pi/pump-pi/controller/utils"
)

// Version is stamped by the build.
var Version = "dev"

func main() {
	configPath := flag.String("config", "/etc/pump-pi/config.yml", "path to the yaml configuration")
	devMode := flag.Bool("dev", false, "run against simulated hardware")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println(Version)
		return
	}

	// Crash-recovery boundary. Any panic that escapes a task means the
	// hardware may be in an unknown state; in production the only safe
	// move is a full device reset.
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		log.Printf("fatal: %v", r)
		if *devMode {
			os.Exit(1)
		}
		if err := utils.Reboot(); err != nil {
			log.Printf("reboot failed: %v", err)
			os.Exit(1)
		}
	}()

	settings, err := controller.LoadSettings(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	c, err := controller.New(settings, *devMode)
	if err != nil {
		log.Fatal(err)
	}

	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		c.SetHeartbeat(watchdogHeartbeat(interval))
	}
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Printf("sd_notify: %v", err)
	}

	log.Printf("pump-pi %s starting", Version)
	c.Start()
}

// watchdogHeartbeat pets the systemd watchdog at half its interval. The
// callback fires once per control-loop tick, so a wedged loop stops the
// heartbeat and systemd power-cycles the service.
func watchdogHeartbeat(interval time.Duration) func() {
	var last time.Time
	return func() {
		if time.Since(last) < interval/2 {
			return
		}
		last = time.Now()
		if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
			log.Printf("sd_notify watchdog: %v", err)
		}
	}
}
