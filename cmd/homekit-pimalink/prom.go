package main

import (
	"errors"
	"strconv"

	pimalink "github.com/caarlos0/homekit-pimalink"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var armStateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace:   "homekit_pimalink",
	Subsystem:   "alarm",
	Name:        "state",
	Help:        "",
	ConstLabels: map[string]string{},
}, []string{"pair"})

var requestCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace:   "homekit_pimalink",
	Subsystem:   "client",
	Name:        "requests_total",
	Help:        "",
	ConstLabels: map[string]string{},
}, []string{"path", "status"})

var pollCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace:   "homekit_pimalink",
	Subsystem:   "poller",
	Name:        "polls_total",
	Help:        "",
	ConstLabels: map[string]string{},
}, []string{"pair", "outcome"})

var commandCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace:   "homekit_pimalink",
	Subsystem:   "alarm",
	Name:        "commands_total",
	Help:        "",
	ConstLabels: map[string]string{},
}, []string{"pair", "state", "outcome"})

func observeRequest(path string, status int, err error) {
	label := strconv.Itoa(status)
	if err != nil {
		label = "transport"
	}
	requestCounter.WithLabelValues(path, label).Inc()
}

// outcome classifies err for metric labels.
func outcome(err error) string {
	var terr *pimalink.TransportError
	var perr *pimalink.ProtocolError
	var uerr *pimalink.UndefinedProtocolError
	var derr *pimalink.StateDecodeError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &terr):
		return "transport"
	case errors.As(err, &perr):
		return "protocol"
	case errors.As(err, &uerr):
		return "undefined"
	case errors.As(err, &derr):
		return "decode"
	default:
		return "error"
	}
}
