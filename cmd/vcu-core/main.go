// Command vcu-core runs the vigilance control unit: it conditions the GPIO
// input channels, drives the penalty brake and warning lamp outputs, emits the
// diagnostic serial frame, and publishes state changes to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/vcu-core/internal/config"
	"github.com/sweeney/vcu-core/internal/core"
	"github.com/sweeney/vcu-core/internal/gpio"
	"github.com/sweeney/vcu-core/internal/metrics"
	"github.com/sweeney/vcu-core/internal/mqtt"
	"github.com/sweeney/vcu-core/internal/status"
	"github.com/sweeney/vcu-core/internal/web"
)

func main() {
	configPath := flag.String("config", "", "YAML config overlay (empty for built-in defaults)")
	batch := flag.Duration("batch", 10*time.Millisecond, "Wall-clock interval between tick batches")
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	printState := flag.Bool("print-state", false, "Print current input levels and exit")
	httpAddr := flag.String("http", ":80", "HTTP status address (empty to disable)")

	flag.Parse()

	if err := run(*configPath, *batch, *broker, *heartbeat, *printState, *httpAddr); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(configPath string, batch time.Duration, broker string, heartbeat time.Duration, printState bool, httpAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var inputPins, outputPins []int
	for _, ch := range cfg.Channels {
		inputPins = append(inputPins, ch.Pin)
	}
	for _, o := range cfg.Outputs {
		inputPins = append(inputPins, o.FeedbackPin)
		outputPins = append(outputPins, o.Pin)
	}
	outputPins = append(outputPins, cfg.Serial.SyncPin, cfg.Serial.ClockPin, cfg.Serial.DataPin)

	lines, err := gpio.NewRealLines(inputPins, outputPins)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer lines.Close()

	if printState {
		for _, ch := range cfg.Channels {
			fmt.Printf("%-16s %s\n", ch.Name, lines.ReadLevel(ch.Pin))
		}
		return nil
	}

	sink := gpio.NewSerialSink(lines, cfg.Serial.SyncPin, cfg.Serial.ClockPin, cfg.Serial.DataPin)
	unit, err := core.New(cfg, lines, sink)
	if err != nil {
		return fmt.Errorf("init core: %w", err)
	}

	metrics.Init()

	publisher, err := mqtt.NewRealPublisher(broker)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Tracker exists before STARTUP so the snapshot payload is available.
	tracker := status.NewTracker(time.Now(), status.Config{
		BatchMs:     batch.Milliseconds(),
		HeartbeatMs: heartbeat.Milliseconds(),
		Broker:      broker,
		HTTPPort:    httpAddr,
		ConfigPath:  configPath,
	})
	tracker.Update(unit.Snapshot(), status.EventCounts{})
	tracker.SetMQTTConnected(publisher.IsConnected())

	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	if httpAddr != "" {
		srv := web.New(httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", httpAddr)
	}

	log.Printf("started: batch=%v broker=%s heartbeat=%v channels=%d outputs=%d",
		batch, broker, heartbeat, len(cfg.Channels), len(cfg.Outputs))

	ticker := time.NewTicker(batch)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	return runLoop(unit, publisher, publisher, tracker, heartbeat, time.Now, ticker.C, sigCh)
}

func runLoop(unit *core.Core, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := now()
	lastWall := startTime
	lastHeartbeat := startTime
	var counts status.EventCounts
	var prevTicks uint64

	for {
		select {
		case s := <-sig:
			if s == syscall.SIGHUP {
				// Operator-initiated synchronous reset.
				log.Printf("received SIGHUP, resetting unit")
				unit.Reset()
				counts = status.EventCounts{}
				if tracker != nil {
					tracker.Update(unit.Snapshot(), counts)
				}
				continue
			}

			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			elapsed := t.Sub(lastWall)
			lastWall = t
			if elapsed <= 0 {
				continue
			}

			batchStart := time.Now()
			events := unit.Advance(elapsed)
			metrics.ObserveBatch(time.Since(batchStart))

			ticks := unit.SyncTicks()
			metrics.AddSyncTicks(ticks - prevTicks)
			prevTicks = ticks

			for _, e := range events {
				log.Printf("event: %s (mode=%s vcut=%s)", e.Type, e.Mode, e.Vcut)
				switch e.Type {
				case core.EventModeChange:
					counts.ModeChanges++
				case core.EventVcutChange:
					counts.VcutChanges++
				case core.EventMinorFault:
					counts.MinorFaults++
				case core.EventMajorFault:
					counts.MajorFaults++
				}
				metrics.IncEvent(string(e.Type))

				err := publisher.Publish(mqtt.Event{
					Timestamp: t,
					Type:      e.Type,
					Mode:      e.Mode,
					Vcut:      e.Vcut,
				})
				if err != nil {
					log.Printf("publish error: %v", err)
					metrics.IncMQTTPublish(metrics.ResultError)
					// Don't crash on publish failure
				} else {
					metrics.IncMQTTPublish(metrics.ResultSuccess)
				}
			}

			snap := unit.Snapshot()
			metrics.SetUnitState(int(snap.Mode), int(snap.Vcut), snap.TimerTicks,
				snap.MinorFault, snap.MajorFault, snap.BrakeEnergized)
			for _, ch := range snap.Channels {
				metrics.SetChannelFault(ch.Name, ch.Fault)
			}
			for _, o := range snap.Outputs {
				metrics.SetOutputFault(o.Name, o.Fault)
			}

			if tracker != nil {
				tracker.Update(snap, counts)
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}

			if heartbeat > 0 && t.Sub(lastHeartbeat) >= heartbeat {
				lastHeartbeat = t
				uptime := t.Sub(startTime)
				log.Printf("heartbeat: uptime=%v mode=%s vcut=%s minor=%v major=%v",
					uptime.Truncate(time.Second), snap.Mode, snap.Vcut, snap.MinorFault, snap.MajorFault)

				hbEvent := mqtt.SystemEvent{
					Timestamp: t,
					Event:     "HEARTBEAT",
					Heartbeat: &mqtt.HeartbeatInfo{
						UptimeSeconds: int64(uptime.Seconds()),
						EventCounts: mqtt.HeartbeatCounts{
							ModeChanges: counts.ModeChanges,
							VcutChanges: counts.VcutChanges,
							MinorFaults: counts.MinorFaults,
							MajorFaults: counts.MajorFaults,
						},
					},
				}
				if tracker != nil {
					hbEvent.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}
