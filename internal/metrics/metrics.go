// Package metrics exposes Prometheus instrumentation for the vcu-core daemon.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "vcu_"

var (
	registerOnce sync.Once

	syncTicks  prometheus.Counter
	events     *prometheus.CounterVec
	mode       prometheus.Gauge
	vcutState  prometheus.Gauge
	timerTicks prometheus.Gauge
	minorFault prometheus.Gauge
	majorFault prometheus.Gauge
	brakeState prometheus.Gauge

	channelFault *prometheus.GaugeVec
	outputFault  *prometheus.GaugeVec

	mqttPublishes *prometheus.CounterVec

	batchLatency prometheus.Histogram
)

// Init registers the daemon metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		syncTicks = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "sync_ticks_total",
				Help: "Total synchronization ticks processed",
			},
		)
		events = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_total",
				Help: "Total state-change events by type",
			},
			[]string{"type"},
		)
		mode = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "operating_mode",
				Help: "Current operating mode (0=NORMAL 1=DEPRESSED 2=SUPPRESSED 3=TEST 4=MAJOR_FAULT)",
			},
		)
		vcutState = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "vcut_state",
				Help: "Current vigilance-timer state (0=NORMAL 1=FIRST_WARNING 2=SECOND_WARNING 3=BRAKE_NO_RESET 4=TRAIN_STOPPED_NO_RESET)",
			},
		)
		timerTicks = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "timer_ticks_remaining",
				Help: "Remaining ticks on the shared vigilance countdown",
			},
		)
		minorFault = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "minor_fault",
				Help: "Minor fault report (1=faulted)",
			},
		)
		majorFault = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "major_fault",
				Help: "Major fault report (1=faulted)",
			},
		)
		brakeState = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "brake_energized",
				Help: "Penalty brake command level (1=energized, brake released)",
			},
		)

		channelFault = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "channel_fault",
				Help: "Per-channel diagnostic fault bit (1=faulted)",
			},
			[]string{"channel"},
		)
		outputFault = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "output_fault",
				Help: "Per-output latched compare fault (1=faulted)",
			},
			[]string{"output"},
		)

		mqttPublishes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "mqtt_publishes_total",
				Help: "Total MQTT publish attempts by result",
			},
			[]string{"result"},
		)

		batchLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "batch_latency_seconds",
				Help:    "Wall-clock time spent advancing one batch of ticks",
				Buckets: prometheus.ExponentialBuckets(0.000010, 4, 10),
			},
		)

		prometheus.MustRegister(
			syncTicks,
			events,
			mode,
			vcutState,
			timerTicks,
			minorFault,
			majorFault,
			brakeState,
			channelFault,
			outputFault,
			mqttPublishes,
			batchLatency,
		)
	})
}

// AddSyncTicks adds processed synchronization ticks.
func AddSyncTicks(n uint64) {
	if syncTicks != nil {
		syncTicks.Add(float64(n))
	}
}

// IncEvent increments the event counter for one event type.
func IncEvent(eventType string) {
	if eventType == "" {
		eventType = "unknown"
	}
	if events != nil {
		events.WithLabelValues(eventType).Inc()
	}
}

// SetUnitState publishes the current FSM and fault state.
func SetUnitState(modeVal, vcutVal int, timer uint32, minor, major, brakeEnergized bool) {
	if mode == nil {
		return
	}
	mode.Set(float64(modeVal))
	vcutState.Set(float64(vcutVal))
	timerTicks.Set(float64(timer))
	minorFault.Set(boolGauge(minor))
	majorFault.Set(boolGauge(major))
	brakeState.Set(boolGauge(brakeEnergized))
}

// SetChannelFault publishes one channel's diagnostic fault bit.
func SetChannelFault(channel string, faulted bool) {
	if channelFault != nil {
		channelFault.WithLabelValues(channel).Set(boolGauge(faulted))
	}
}

// SetOutputFault publishes one output's latched compare fault.
func SetOutputFault(output string, faulted bool) {
	if outputFault != nil {
		outputFault.WithLabelValues(output).Set(boolGauge(faulted))
	}
}

// IncMQTTPublish increments the publish counter by result.
func IncMQTTPublish(result string) {
	if result == "" {
		result = "unknown"
	}
	if mqttPublishes != nil {
		mqttPublishes.WithLabelValues(result).Inc()
	}
}

// ObserveBatch records the wall-clock cost of one Advance batch.
func ObserveBatch(d time.Duration) {
	if batchLatency != nil {
		batchLatency.Observe(d.Seconds())
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Exported result labels for callers.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)
