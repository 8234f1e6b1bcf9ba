package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/services"
	"camrelay/internal/infrastructure/probe"
	"camrelay/internal/infrastructure/repositories/memory"
	"camrelay/pkg/config"
	"camrelay/pkg/logger"
	"camrelay/pkg/rtspurl"
	"camrelay/pkg/utils"
)

const usage = `usage: relayctl [-config path] <command> [args]

commands:
  diagnose <camera-ip> [rtsp-port]   probe a camera from this host
  mask <rtsp-url>                    print the URL with credentials hidden
  token [-role viewer|operator|admin] [-ttl 12h] <subject>
                                     mint an API token with the configured secret
`

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config.yaml")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "relayctl: %v\n", err)
		os.Exit(1)
	}

	switch args[0] {
	case "diagnose":
		err = runDiagnose(cfg, args[1:], os.Stdout)
	case "mask":
		err = runMask(args[1:], os.Stdout)
	case "token":
		err = runToken(cfg, args[1:], os.Stdout)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "relayctl: %v\n", err)
		os.Exit(1)
	}
}

func runDiagnose(cfg *config.Config, args []string, out io.Writer) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("diagnose takes <camera-ip> [rtsp-port]")
	}
	port := rtspurl.DefaultPort
	if len(args) == 2 {
		p, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid port %q", args[1])
		}
		port = p
	}

	// Only warnings reach the terminal; the report is the output.
	zapLogger, err := logger.New("warn", "console")
	if err != nil {
		return err
	}
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	prober := probe.NewProber(probe.Config{
		ProbeTimeout:      cfg.Diagnostics.ProbeTimeout,
		PingTimeout:       cfg.Diagnostics.PingTimeout,
		TracerouteTimeout: cfg.Diagnostics.TracerouteTimeout,
		TracerouteMaxHops: cfg.Diagnostics.TracerouteMaxHops,
		InternetTargets:   cfg.Diagnostics.InternetTargets,
	}, nil)
	events := services.NewEventService(memory.NewMemoryEventRepository(1), nil, nil, 0, log)
	diagnostics := services.NewDiagnosticsService(prober, events, nil, cfg.Diagnostics.Timeout, log)

	result, err := diagnostics.Run(context.Background(), args[0], port)
	if err != nil {
		return err
	}
	printDiagnostics(out, result)
	return nil
}

func printDiagnostics(out io.Writer, r *domain.DiagnosticsResult) {
	fmt.Fprintf(out, "camera      %s:%d\n", r.Camera.IP, r.Camera.Port)
	fmt.Fprintf(out, "status      %s (%s)\n", r.Status, utils.FormatDuration(r.Duration))
	fmt.Fprintf(out, "server ip   %s\n", valueOr(r.ServerIP, "unknown"))
	fmt.Fprintf(out, "ping        %s\n", yesNo(r.Camera.Reachable))
	fmt.Fprintf(out, "rtsp port   %s\n", openClosed(r.Camera.PortOpen))
	fmt.Fprintf(out, "internet    %s\n", yesNo(r.InternetReachable))
	if r.Camera.Error != "" {
		fmt.Fprintf(out, "error       %s\n", r.Camera.Error)
	}
	if len(r.Suggestions) > 0 {
		fmt.Fprintln(out, "\nsuggestions:")
		for _, s := range r.Suggestions {
			fmt.Fprintf(out, "  - %s\n", s)
		}
	}
	if r.Camera.TraceOutput != "" {
		fmt.Fprintf(out, "\ntraceroute:\n%s\n", r.Camera.TraceOutput)
	}
}

func runMask(args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("mask takes exactly one URL")
	}
	if !rtspurl.IsValid(args[0]) {
		return fmt.Errorf("not a valid RTSP URL: %s", rtspurl.Mask(args[0]))
	}
	fmt.Fprintln(out, rtspurl.Mask(args[0]))
	return nil
}

func runToken(cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	role := fs.String("role", string(domain.RoleOperator), "role granted by the token")
	ttl := fs.Duration("ttl", cfg.Auth.AccessTokenTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("token takes exactly one subject")
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not configured (set CAMRELAY_JWT_SECRET)")
	}
	if *ttl <= 0 {
		*ttl = 12 * time.Hour
	}

	auth := services.NewAuthService(cfg.Auth.JWTSecret, *ttl)
	token, err := auth.GenerateToken(fs.Arg(0), domain.Role(*role))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func openClosed(b bool) string {
	if b {
		return "open"
	}
	return "closed"
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
