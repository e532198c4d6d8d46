package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/caarlos0/env/v11"
	pimalink "github.com/caarlos0/homekit-pimalink"
	"github.com/cenkalti/backoff/v4"
	logp "github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/exp/slices"
)

//go:embed index.html
var index []byte

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "homekit",
})

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const manufacturer = "PIMA"

func main() {
	log.Info(
		"homekit-pimalink",
		"version", version,
		"commit", commit,
		"date", date,
		"info", strings.Join([]string{
			"Homekit bridge for PIMA alarm systems through pimalink",
			"© Carlos Alexandro Becker",
			"https://becker.software",
		}, "\n"),
	)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	signal.Notify(c, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-c
		log.Info("stopping")
		signal.Stop(c)
		cancel()
	}()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Fatal("failed", "err", err)
	}
}

// app holds what every command needs: configuration, settings and a client
// bound to this installation's web user id.
type app struct {
	cfg      Config
	settings *Settings
	cli      *pimalink.Client
}

func setup() (*app, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.New("could not parse env:\n" + formatEnvError(err))
	}
	return newApp(cfg)
}

func newApp(cfg Config) (*app, error) {
	level, err := cfg.level()
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)
	pimalink.SetLogLevel(level)

	settings, err := OpenSettings(cfg.Settings)
	if err != nil {
		return nil, err
	}
	id, err := pimalink.LoadIdentity(settings)
	if err != nil {
		return nil, err
	}
	log.Debug("loaded identity", "webUserID", id, "settings", cfg.Settings)

	cli := pimalink.New(
		id,
		pimalink.WithBaseURL(cfg.BaseURL),
		pimalink.WithTimeout(cfg.RequestTimeout),
		pimalink.WithRequestHook(observeRequest),
	)
	return &app{cfg: cfg, settings: settings, cli: cli}, nil
}

// panels lists the paired panels shown on the bridge, sorted by pair id so
// accessory ids are stable between restarts.
func (a *app) panels(ctx context.Context) ([]pimalink.PairEntity, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = time.Second * 5
	bo.MaxElapsedTime = time.Minute

	var entities []pimalink.PairEntity
	if err := backoff.RetryNotify(func() error {
		var err error
		entities, err = a.cli.PairEntities(ctx)
		var terr *pimalink.TransportError
		if err != nil && !errors.As(err, &terr) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx), func(err error, _ time.Duration) {
		log.Error("could not list panels", "err", err)
	}); err != nil {
		return nil, err
	}

	hidden := a.settings.Hidden()
	entities = slices.DeleteFunc(entities, func(e pimalink.PairEntity) bool {
		if slices.Contains(hidden, e.PairID) {
			log.Info("skipping deleted panel", "pair", e.PairID, "name", e.Name)
			return true
		}
		return false
	})
	slices.SortFunc(entities, func(x, y pimalink.PairEntity) int {
		return strings.Compare(x.PairID, y.PairID)
	})
	return entities, nil
}

func serve(ctx context.Context, a *app) error {
	phrases, err := a.cfg.phrases()
	if err != nil {
		return err
	}

	entities, err := a.panels(ctx)
	if err != nil {
		return fmt.Errorf("could not init accessories: %w", err)
	}
	if len(entities) == 0 {
		return fmt.Errorf("no panels to expose: %w", pimalink.ErrNoPairEntities)
	}

	var publisher Publisher
	if a.cfg.MQTTBroker != "" {
		mirror, err := NewMirror(a.cfg.MQTTBroker, a.cfg.MQTTTopic)
		if err != nil {
			return err
		}
		defer mirror.Close()
		publisher = mirror
	}

	bridge := accessory.NewBridge(accessory.Info{
		Name:         "PIMA Bridge",
		Manufacturer: manufacturer,
		Firmware:     version,
	})

	var alarms []*SecuritySystem
	var panels []*pimalink.Panel
	for i, entity := range entities {
		code, err := a.cfg.userCode(entity.PairID)
		if err != nil {
			return err
		}

		alarm := NewSecuritySystem(accessory.Info{
			Name:         entity.Name,
			SerialNumber: entity.PairID,
			Manufacturer: manufacturer,
			Firmware:     version,
		}, entity.PairID, a.cfg.RequestTimeout)
		alarm.Id = uint64(2 + i)

		var capability pimalink.Capability = alarm
		if publisher != nil {
			capability = mirrored{Capability: alarm, pairID: entity.PairID, publisher: publisher}
		}

		pairID := entity.PairID
		panel := pimalink.NewPanel(
			a.cli,
			entity,
			code,
			phrases,
			capability,
			pimalink.WithPollInterval(a.cfg.PollInterval),
			pimalink.WithPollHook(func(_ pimalink.AlarmState, err error) {
				pollCounter.WithLabelValues(pairID, outcome(err)).Inc()
			}),
		)
		alarm.Bind(panel)

		log.Info("loaded panel", "pair", entity.PairID, "name", entity.Name, "id", alarm.Id)
		alarms = append(alarms, alarm)
		panels = append(panels, panel)
	}

	fs := hap.NewFsStore(a.cfg.DB)

	server, err := hap.NewServer(fs, bridge.A, securityAccessories(alarms)...)
	if err != nil {
		return fmt.Errorf("fail to create server: %w", err)
	}
	server.Addr = a.cfg.Address
	server.ServeMux().Handle("/metrics", promhttp.Handler())
	server.ServeMux().Handle("/", statusPage(alarms))

	for _, panel := range panels {
		panel.Start(ctx)
	}
	defer func() {
		for _, panel := range panels {
			panel.Stop()
		}
	}()

	log.Info("starting server", "addr", server.Addr)
	if err := server.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to close server: %w", err)
	}
	return nil
}

func securityAccessories(alarms []*SecuritySystem) []*accessory.A {
	var result []*accessory.A
	for _, alarm := range alarms {
		result = append(result, alarm.A)
	}
	return result
}

type PageItem struct {
	Number int
	PairID string
	Name   string
	State  string
}

func statusPage(alarms []*SecuritySystem) http.Handler {
	tpl := template.Must(template.New("index").Parse(string(index)))
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		var items []PageItem
		for i, alarm := range alarms {
			items = append(items, PageItem{
				Number: i + 1,
				PairID: alarm.pairID,
				Name:   alarm.Name(),
				State:  alarm.Value().String(),
			})
		}
		_ = tpl.Execute(w, struct {
			Version string
			Panels  []PageItem
		}{
			Version: version,
			Panels:  items,
		})
	})
}
