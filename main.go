package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"
	"periph.io/x/host/v3"

	"github.com/smazurov/marvin/cmd"
	"github.com/smazurov/marvin/internal/api"
	"github.com/smazurov/marvin/internal/blinkt"
	"github.com/smazurov/marvin/internal/config"
	"github.com/smazurov/marvin/internal/dispatch"
	"github.com/smazurov/marvin/internal/events"
	"github.com/smazurov/marvin/internal/led"
	"github.com/smazurov/marvin/internal/logging"
	"github.com/smazurov/marvin/internal/metrics"
	"github.com/smazurov/marvin/internal/picoborg"
	"github.com/smazurov/marvin/internal/robot"
	"github.com/smazurov/marvin/internal/version"
)

// Options for the CLI - flat structure with toml mapping. The [dispatch]
// table is read separately so it can be reloaded.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8000" toml:"server.port" env:"SERVER_PORT"`

	// Motor controller
	ControllerBus     string `help:"I2C bus name or number (empty for the first bus)" default:"" toml:"i2c.bus" env:"I2C_BUS"`
	ControllerAddress string `help:"PicoBorg Reverse I2C address" default:"0x44" toml:"i2c.address" env:"I2C_ADDRESS"`

	// LED strip
	BlinktDataPin    string `help:"LED strip data GPIO" default:"GPIO23" toml:"blinkt.data_pin" env:"BLINKT_DATA_PIN"`
	BlinktClockPin   string `help:"LED strip clock GPIO" default:"GPIO24" toml:"blinkt.clock_pin" env:"BLINKT_CLOCK_PIN"`
	BlinktBrightness int    `help:"LED strip brightness 1-31 (0 keeps the strip default)" default:"0" toml:"blinkt.brightness" env:"BLINKT_BRIGHTNESS"`

	// Devices
	DevicesPicoborg bool `help:"Use the PicoBorg Reverse motor controller" default:"true" toml:"devices.picoborg_enabled" env:"DEVICES_PICOBORG"`
	DevicesBlinkt   bool `help:"Use the Blinkt LED strip" default:"true" toml:"devices.blinkt_enabled" env:"DEVICES_BLINKT"`

	// Safety
	SafetyResetEPO      bool `help:"Reset the EPO latch at startup" default:"false" toml:"safety.reset_epo_on_start" env:"SAFETY_RESET_EPO"`
	SafetyCommsFailsafe bool `help:"Stop the motors when the bus goes quiet" default:"false" toml:"safety.comms_failsafe" env:"SAFETY_COMMS_FAILSAFE"`
	SafetyEPOIgnore     bool `help:"Ignore the EPO latch" default:"false" toml:"safety.epo_ignore" env:"SAFETY_EPO_IGNORE"`

	// Features
	FeaturesStatusLED bool `help:"Show robot health on the host board LED" default:"false" toml:"features.status_led_enabled" env:"FEATURES_STATUS_LED"`
	MetricsEnabled    bool `help:"Serve prometheus metrics on /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Logging settings; empty module levels follow the global level
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingPicoborg string `help:"Motor controller logging level" default:"" toml:"logging.picoborg" env:"LOGGING_PICOBORG"`
	LoggingBlinkt   string `help:"LED strip logging level" default:"" toml:"logging.blinkt" env:"LOGGING_BLINKT"`
	LoggingRobot    string `help:"Device assembly logging level" default:"" toml:"logging.robot" env:"LOGGING_ROBOT"`
	LoggingDispatch string `help:"Command dispatcher logging level" default:"" toml:"logging.dispatch" env:"LOGGING_DISPATCH"`
	LoggingAPI      string `help:"API logging level" default:"" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP     string `help:"HTTP request logging level" default:"" toml:"logging.http" env:"LOGGING_HTTP"`
}

func (o *Options) loggingConfig() logging.Config {
	modules := map[string]string{}
	for module, level := range map[string]string{
		"picoborg": o.LoggingPicoborg,
		"blinkt":   o.LoggingBlinkt,
		"robot":    o.LoggingRobot,
		"dispatch": o.LoggingDispatch,
		"api":      o.LoggingAPI,
		"http":     o.LoggingHTTP,
	} {
		if level != "" {
			modules[module] = level
		}
	}
	return logging.Config{Level: o.LoggingLevel, Format: o.LoggingFormat, Modules: modules}
}

// openers turns the device options into assembly openers. A disabled
// device gets a nil opener.
func (o *Options) openers() (func() (robot.Board, error), func() (robot.Strip, error)) {
	var openController func() (robot.Board, error)
	if o.DevicesPicoborg {
		openController = func() (robot.Board, error) {
			addr, err := picoborg.ParseAddress(o.ControllerAddress)
			if err != nil {
				return nil, err
			}
			board, err := picoborg.Open(o.ControllerBus, addr, logging.GetLogger("picoborg"))
			if err != nil {
				return nil, err
			}
			return board, nil
		}
	}

	var openStrip func() (robot.Strip, error)
	if o.DevicesBlinkt {
		openStrip = func() (robot.Strip, error) {
			strip, err := blinkt.Open(o.BlinktDataPin, o.BlinktClockPin, logging.GetLogger("blinkt"))
			if err != nil {
				return nil, err
			}
			if o.BlinktBrightness > 0 {
				strip.SetBrightness(float64(o.BlinktBrightness) / 31)
			}
			return strip, nil
		}
	}
	return openController, openStrip
}

func policyFrom(d config.Dispatch) dispatch.Policy {
	return dispatch.Policy{
		ForwardSpeed:   d.ForwardSpeed,
		DemoPower:      d.DemoPower,
		DemoDuration:   d.DemoDuration,
		StrobeDuration: d.StrobeDuration,
		MaxDuration:    d.MaxDuration,
	}
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			logging.GetLogger("config").Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(opts.loggingConfig())
		logger := logging.GetLogger("main")
		logger.Info("Starting", "version", version.String())

		eventBus := events.New()

		var ledManager *led.Manager
		if opts.FeaturesStatusLED {
			ledLogger := logging.GetLogger("led")
			ledManager = led.NewManager(led.New(ledLogger), eventBus, ledLogger)
			// before assembly so it sees the device status events
			ledManager.Start()
		}

		if _, hostErr := host.Init(); hostErr != nil {
			logger.Warn("Failed to initialise host drivers, devices will be unavailable", "error", hostErr)
		}

		openController, openStrip := opts.openers()
		bot := robot.Assemble(robot.Config{
			OpenController: openController,
			OpenStrip:      openStrip,
			Safety: robot.SafetyOptions{
				ResetEPO:      opts.SafetyResetEPO,
				CommsFailsafe: opts.SafetyCommsFailsafe,
				EPOIgnore:     opts.SafetyEPOIgnore,
			},
			Bus:    eventBus,
			Logger: logging.GetLogger("robot"),
		})

		dispatcher := dispatch.New(bot, eventBus, logging.GetLogger("dispatch"))
		if d, dispatchErr := config.LoadDispatch(opts.Config); dispatchErr != nil {
			logger.Warn("Invalid [dispatch] settings, using defaults", "error", dispatchErr)
		} else {
			dispatcher.SetPolicy(policyFrom(d))
		}

		watcher := config.NewConfigWatcher(opts.Config, config.LoadLive, logging.GetLogger("config"),
			config.WithErrorHandler[config.Live](func(err error) {
				logger.Warn("Config reload rejected, keeping current settings", "error", err)
			}))
		watcher.OnReload(func(live config.Live) {
			dispatcher.SetPolicy(policyFrom(live.Dispatch))
			logging.ApplyLevels(live.Logging)
		})

		apiOpts := &api.Options{
			Commands: dispatcher,
			Robot:    bot,
			EventBus: eventBus,
		}
		if ledManager != nil {
			apiOpts.StatusLED = ledManager
		}
		if opts.MetricsEnabled {
			apiOpts.PrometheusHandler = metrics.Handler()
		}
		server := api.NewServer(apiOpts)

		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			go dispatcher.Run(ctx)

			if startErr := watcher.Start(); startErr != nil {
				logger.Warn("Config watcher not started, settings will not reload", "error", startErr)
			}

			startErr := server.Start(opts.Port, func() {
				if _, notifyErr := daemon.SdNotify(false, daemon.SdNotifyReady); notifyErr != nil {
					logger.Debug("sd_notify failed", "error", notifyErr)
				}
			})
			if startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				cancel()
				<-dispatcher.Done()
				bot.Release()
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if _, notifyErr := daemon.SdNotify(false, daemon.SdNotifyStopping); notifyErr != nil {
				logger.Debug("sd_notify failed", "error", notifyErr)
			}

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			// let the command in progress finish before the devices go away
			cancel()
			<-dispatcher.Done()
			bot.Release()

			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping config watcher", "error", stopErr)
			}
			if ledManager != nil {
				ledManager.Stop()
			}
		})
	})

	cli.Root().Use = version.Name
	cli.Root().Version = version.String()
	cli.Root().AddCommand(cmd.CreateScanCmd())
	cli.Root().AddCommand(cmd.CreateSetAddressCmd())
	cli.Root().AddCommand(cmd.CreateStripCmd())

	cli.Run()
}
