package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/elva/internal/profile"
	"github.com/hrygo/elva/server"
)

var (
	version = "dev"

	rootCmd = &cobra.Command{
		Use:   "elva",
		Short: `Elva AI, a chat front end that drafts actions and asks before running them.`,
		RunE:  runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the Elva front end server (default command)",
		RunE:  runServe,
	}
)

func runServe(_ *cobra.Command, _ []string) error {
	instanceProfile, err := loadProfile()
	if err != nil {
		return err
	}
	setupLogger(instanceProfile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, err := server.NewServer(ctx, instanceProfile)
	if err != nil {
		return err
	}

	c := make(chan os.Signal, 1)
	// Trigger graceful shutdown on SIGINT or SIGTERM.
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	if err := s.Start(ctx); err != nil {
		return err
	}
	printGreetings(instanceProfile, s.Addr())

	go func() {
		<-c
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		s.Shutdown(shutdownCtx)
		cancel()
	}()

	<-ctx.Done()
	return nil
}

func init() {
	viper.SetDefault("mode", "demo")
	viper.SetDefault("addr", "")
	viper.SetDefault("port", 3000)
	viper.SetDefault("user-id", "default_user")
	viper.SetDefault("link-service", "gmail")
	viper.SetDefault("request-timeout", 30*time.Second)
	viper.SetDefault("max-inflight", 16)
	viper.SetDefault("session-idle-ttl", 24*time.Hour)
	viper.SetDefault("chat-rate-limit", 1.0)
	viper.SetDefault("chat-burst", 5)
	viper.SetDefault("log-format", "text")

	flags := rootCmd.PersistentFlags()
	flags.String("mode", "demo", `mode of server, can be "prod" or "dev" or "demo"`)
	flags.String("addr", "", "address of server")
	flags.Int("port", 3000, "port of server")
	flags.String("backend-url", "", "root URL of the AI backend (requests go to <url>/api)")
	flags.String("user-id", "default_user", "user id sent with every chat request")
	flags.String("link-service", "gmail", "service name expected in OAuth redirects")
	flags.String("secret", "", "secret signing the session cookie")
	flags.Duration("request-timeout", 30*time.Second, "timeout of one backend request")
	flags.Int64("max-inflight", 16, "maximum concurrent backend requests")
	flags.Duration("session-idle-ttl", 24*time.Hour, "idle time before a session is dropped")
	flags.Float64("chat-rate-limit", 1.0, "chat sends per second per session")
	flags.Int("chat-burst", 5, "chat send burst per session")
	flags.String("log-format", "text", `log format, "text" or "json"`)

	for _, name := range []string{
		"mode", "addr", "port", "backend-url", "user-id", "link-service", "secret",
		"request-timeout", "max-inflight", "session-idle-ttl", "chat-rate-limit", "chat-burst", "log-format",
	} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("elva")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.AddCommand(serveCmd, probeCmd)
}

func loadProfile() (*profile.Profile, error) {
	instanceProfile := &profile.Profile{
		Mode:           viper.GetString("mode"),
		Addr:           viper.GetString("addr"),
		Port:           viper.GetInt("port"),
		Version:        version,
		BackendURL:     viper.GetString("backend-url"),
		UserID:         viper.GetString("user-id"),
		LinkService:    viper.GetString("link-service"),
		Secret:         viper.GetString("secret"),
		RequestTimeout: viper.GetDuration("request-timeout"),
		MaxInflight:    viper.GetInt64("max-inflight"),
		SessionIdleTTL: viper.GetDuration("session-idle-ttl"),
		ChatRateLimit:  viper.GetFloat64("chat-rate-limit"),
		ChatBurst:      viper.GetInt("chat-burst"),
		LogFormat:      viper.GetString("log-format"),
	}
	instanceProfile.FromEnv()
	if err := instanceProfile.Validate(); err != nil {
		return nil, err
	}
	return instanceProfile, nil
}

func setupLogger(p *profile.Profile) {
	level := slog.LevelInfo
	if p.IsDev() {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if p.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func printGreetings(p *profile.Profile, addr string) {
	fmt.Printf("Elva %s started successfully!\n", p.Version)
	fmt.Printf("Data flows to %s/api\n", p.BackendURL)
	fmt.Printf("Server running on http://%s in %s mode\n", addr, p.Mode)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
