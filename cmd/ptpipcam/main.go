package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"ptpipcam/internal/device"
)

func main() {
	logrus.SetFormatter(&prefixed.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(envStr("PTPIPCAM_LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	cameraIP := envStr("PTPIPCAM_CAMERA_IP", "")
	if cameraIP == "" {
		logrus.Fatal("PTPIPCAM_CAMERA_IP is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cam := device.New(cameraIP)
	logrus.WithField("host", cameraIP).Info("connecting")
	if err := cam.Connect(ctx); err != nil {
		logrus.WithError(err).Fatal("connect failed")
	}
	defer cam.Disconnect()

	settings, err := cam.GetSettings(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("get_settings failed")
	}
	printSettings(settings)

	relayPort := envInt("PTPIPCAM_LIVEVIEW_PORT", 0)
	if relayPort != 0 {
		go serveLiveViewRelay(ctx, cam, relayPort)
	}

	if args := os.Args[1:]; len(args) > 0 {
		if err := runSubcommand(ctx, cam, args); err != nil {
			logrus.WithError(err).Fatal("command failed")
		}
		return
	}

	<-ctx.Done()
	logrus.Info("shutting down")
}

// runSubcommand exercises the named convenience setters from the
// command line, mirroring the teacher's choice to keep cmd/airscap a
// thin wrapper rather than a parser framework.
func runSubcommand(ctx context.Context, cam *device.Device, args []string) error {
	switch args[0] {
	case "set-iso":
		return cam.SetISO(ctx, args[1])
	case "set-shutter-speed":
		return cam.SetShutterSpeed(ctx, args[1])
	case "set-aperture":
		return cam.SetAperture(ctx, args[1])
	case "set-white-balance":
		return cam.SetWhiteBalance(ctx, args[1])
	case "set-focus-mode":
		return cam.SetFocusMode(ctx, args[1])
	case "set-exposure-compensation":
		ev, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid EV %q: %w", args[1], err)
		}
		return cam.SetExposureCompensation(ctx, ev)
	case "start-recording":
		return cam.StartRecording(ctx)
	case "stop-recording":
		return cam.StopRecording(ctx)
	case "start-zoom":
		speed := 1
		if len(args) > 2 {
			if n, err := strconv.Atoi(args[2]); err == nil {
				speed = n
			}
		}
		return cam.StartZoom(ctx, args[1], speed)
	case "stop-zoom":
		return cam.StopZoom(ctx)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printSettings(s device.Settings) {
	fmt.Printf("iso=%s shutter=%s aperture=%s wb=%s focus=%s ev=%s battery=%d%% recording=%v\n",
		s.ISO, s.ShutterSpeed, s.Aperture, s.WhiteBalance, s.FocusMode, s.ExposureComp, s.BatteryLevel, s.IsRecording)
}

var liveViewUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// serveLiveViewRelay exposes the Device's live-view channel to a browser
// over WebSocket — the demo's equivalent of the teacher's eSCL HTTP
// server wrapping the protocol client for an external consumer.
func serveLiveViewRelay(ctx context.Context, cam *device.Device, port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/liveview", func(w http.ResponseWriter, r *http.Request) {
		conn, err := liveViewUpgrader.Upgrade(w, r, nil)
		if err != nil {
			logrus.WithError(err).Debug("liveview websocket upgrade failed")
			return
		}
		defer conn.Close()

		fpsLog := time.NewTicker(5 * time.Second)
		defer fpsLog.Stop()
		go func() {
			for range fpsLog.C {
				logrus.WithField("fps", cam.LiveViewFPS()).Debug("live-view relay streaming")
			}
		}()

		frames := cam.LiveView(r.Context())
		for frame := range frames {
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		}
	})

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logrus.WithField("addr", addr).Info("live-view relay listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logrus.WithError(err).Error("live-view relay stopped")
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
