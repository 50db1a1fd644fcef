package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nixxel-company-limited/escpos-checkin/adapter"
	"github.com/nixxel-company-limited/escpos-checkin/api"
	"github.com/nixxel-company-limited/escpos-checkin/checkin"
	"github.com/nixxel-company-limited/escpos-checkin/config"
	"github.com/nixxel-company-limited/escpos-checkin/httpapi"
	"github.com/nixxel-company-limited/escpos-checkin/printer"
	"github.com/nixxel-company-limited/escpos-checkin/server"
	"github.com/nixxel-company-limited/escpos-checkin/ticket"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}

	logger, err := cfg.Log.Logger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, device := newManager(cfg, logger)

	if cfg.List {
		if err := list(ctx, manager); err != nil {
			logger.Fatal("Listing failed", zap.Error(err))
		}
		return
	}

	if err := run(ctx, cfg, manager, device, logger); err != nil {
		logger.Fatal("Station stopped with error", zap.Error(err))
	}
}

// newManager builds the printer manager for the configured transport. device
// is the fixed printer to connect to, or nil for automatic selection.
func newManager(cfg *config.Config, logger *zap.Logger) (*printer.Manager, *printer.Device) {
	opts := []printer.Option{
		printer.WithPreferredName(cfg.Printer.PreferredName),
		printer.WithLogger(logger.Named("printer")),
	}

	var driver printer.Driver
	var device *printer.Device

	switch cfg.Printer.Transport {
	case config.TransportUSB:
		driver = printer.NewUSBDriver(logger.Named("usb"))
		if cfg.Printer.USBVendor != 0 || cfg.Printer.USBProduct != 0 {
			sel := adapter.USBSelector{Vendor: cfg.Printer.USBVendor, Product: cfg.Printer.USBProduct}
			device = &printer.Device{Address: sel.Address(), Name: "USB printer " + sel.Address()}
		}
	default:
		radio := adapter.NewRadio(logger.Named("bluetooth"))
		bt := printer.NewBluetoothDriver(radio, cfg.Printer.RFCOMMChannel, cfg.Printer.BaudRate, nil, logger.Named("bluetooth"))
		driver = bt
		opts = append(opts, printer.WithPermissions(bt.Permissions))
	}

	return printer.NewManager(driver, opts...), device
}

func list(ctx context.Context, manager *printer.Manager) error {
	devices, err := manager.ListPairedDevices(ctx)
	if err != nil {
		return err
	}
	fmt.Println("Printers:")
	for _, d := range devices {
		fmt.Printf("  %s  %s\n", d.Address, d.Name)
	}

	ports, err := adapter.ListSerialPorts()
	if err != nil {
		return err
	}
	fmt.Println("Serial ports:")
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, manager *printer.Manager, device *printer.Device, logger *zap.Logger) error {
	manager.Subscribe(func(st printer.State) {
		logger.Info("Printer state changed", zap.Stringer("state", st))
	})

	if cfg.API.Token == "" {
		logger.Warn("No API token configured, attendance and passport uploads will be rejected")
	}
	client := api.NewClient(cfg.API.BaseURL, cfg.API.Token, cfg.API.Timeout, api.WithLogger(logger.Named("api")))

	station := checkin.NewStation(client, manager,
		checkin.WithAutoPrint(cfg.Scan.AutoPrint),
		checkin.WithTicketOptions(ticket.Options{
			Title:    cfg.Ticket.Title,
			Width:    cfg.Ticket.Width,
			Encoding: cfg.Ticket.Encoding,
		}),
		checkin.WithLogger(logger.Named("checkin")),
	)

	if cfg.Printer.AutoConnect {
		go func() {
			if _, err := manager.Connect(ctx, device); err != nil {
				logger.Warn("Printer not connected at startup", zap.Error(err))
			}
		}()
	}

	operator := httpapi.New(manager, station, logger.Named("http"))
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           operator.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("Operator API listening", zap.String("address", cfg.HTTP.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	var raw *server.Server
	if cfg.Raw.Enabled {
		raw = server.New(manager, cfg.Raw.Address, logger)
		if err := raw.StartAsync(); err != nil {
			httpServer.Close()
			return err
		}
	}

	if cfg.Scan.Stdin {
		go func() {
			if err := station.Run(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("Scanner input stopped", zap.Error(err))
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down gracefully...")
	case err := <-errc:
		runErr = fmt.Errorf("operator API: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	operator.Close()
	err := multierr.Append(runErr, httpServer.Shutdown(shutdownCtx))
	if raw != nil {
		err = multierr.Append(err, raw.Stop())
	}
	err = multierr.Append(err, manager.Disconnect(shutdownCtx))
	return err
}
