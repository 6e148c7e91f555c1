/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	_ "embed"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

//go:embed assets/quiz/index.html
var indexHTML []byte

//go:embed assets/quiz/app.css
var quizboxCSS []byte

//go:embed assets/quiz/app.js
var quizboxJS []byte

func getIndexHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(indexHTML)
	}
}

func getCssHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(quizboxCSS)
	}
}

func getJsHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(quizboxJS)
	}
}

// qrHandler generates a PNG QR code for the current room URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := ps.ByName("code")
	if code == "" {
		http.Error(w, "missing room code", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:code/qr; strip trailing "/qr" to get the room URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// registerQuizGame sets up routes so that:
//   - $path              → HTML client (create or join a room)
//   - $path/:code        → HTML client with the room code prefilled
//   - $path/:code/ws     → WebSocket for that room
//   - $path/:code/qr     → PNG QR code for that room URL
func registerQuizGame(cfg *Config, path string, mux *httprouter.Router, registry *SessionRegistry) {
	mux.GET(cfg.prefix+path, getIndexHandler(cfg))

	mux.GET(cfg.prefix+path+"/:code", getIndexHandler(cfg))

	// Shared assets (no room code in route)
	mux.GET(cfg.prefix+"/assets/quiz/app.css", getCssHandler(cfg))
	mux.GET(cfg.prefix+"/assets/quiz/app.js", getJsHandler(cfg))

	// Per-room websocket
	mux.GET(cfg.prefix+path+"/:code/ws", serveQuizWS(cfg, registry))

	// Per-room QR code
	mux.GET(cfg.prefix+path+"/:code/qr", qrHandler)
}
