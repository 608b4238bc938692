package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"care-conversations-go/internal/config"
	"care-conversations-go/internal/logger"
	"care-conversations-go/internal/pipeline"
	"care-conversations-go/internal/provider"
	"care-conversations-go/internal/report"
	"care-conversations-go/internal/scheduler"
	"care-conversations-go/internal/storage"
	"care-conversations-go/internal/watcher"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "care-conversations-go").Info("starting service")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	store, err := storage.New(cfg.BaseDir, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize storage")
	}

	transcriber := provider.NewTranscriber(cfg, log)
	summarizer := provider.NewSummarizer(cfg, log)
	pipe := pipeline.New(transcriber, summarizer, log)
	reporter := report.New(store, log)

	retention, err := scheduler.New(store, cfg.BaseDir, cfg.RetentionSchedule, cfg.RetentionTZ, cfg.RetentionMonths, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build retention scheduler")
	}
	if err := retention.Start(); err != nil {
		log.WithError(err).Fatal("failed to start retention scheduler")
	}

	var watch *watcher.Watcher
	if cfg.WatchDir != "" {
		watch, err = watcher.New(cfg.WatchDir, cfg.WatchDepth, watcher.NewIngest(pipe, store, log), log)
		if err != nil {
			log.WithError(err).Fatal("failed to build ingestion watcher")
		}
		if err := watch.Start(cfg.WorkerCount); err != nil {
			log.WithError(err).Fatal("failed to start ingestion watcher")
		}
	} else {
		log.Info("AUDIO_WATCH_DIR unset, ingestion watcher disabled")
	}

	mux := http.NewServeMux()

	// health
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		logger.New().WithRequest(r).Info("health check")
		fmt.Fprint(w, "ok")
	})

	// process: multipart upload of one recording, synchronous result
	mux.HandleFunc("/process", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "process")
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxAudioBytes)
		if err := r.ParseMultipartForm(cfg.MaxAudioBytes); err != nil {
			reqLog.WithError(err).Warn("rejecting oversized or malformed upload")
			http.Error(w, "invalid multipart upload", http.StatusBadRequest)
			return
		}
		userID := r.FormValue("user_id")
		personName := r.FormValue("person_name")
		if userID == "" || personName == "" {
			http.Error(w, "user_id and person_name are required", http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("audio")
		if err != nil {
			http.Error(w, "missing audio file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		audio, err := io.ReadAll(file)
		if err != nil {
			reqLog.WithError(err).Error("failed to read upload")
			http.Error(w, "failed to read upload", http.StatusInternalServerError)
			return
		}
		reqLog = reqLog.WithField("user_id", userID).WithField("filename", header.Filename)
		reqLog.WithField("bytes", len(audio)).Info("process request received")

		res, procErr := pipe.Process(r.Context(), audio, header.Filename, personName)
		audioPath, err := store.SaveAudio(userID, header.Filename, audio)
		if err != nil {
			reqLog.WithError(err).Error("failed to persist audio")
			http.Error(w, "failed to persist audio", http.StatusInternalServerError)
			return
		}
		rec, err := store.Save(userID, pipeline.NewRecord(userID, personName, audioPath, res))
		if err != nil {
			reqLog.WithError(err).Error("failed to persist record")
			http.Error(w, "failed to persist record", http.StatusInternalServerError)
			return
		}
		if procErr != nil {
			reqLog.WithError(procErr).Warn("conversation stored with failed processing")
		}
		writeJSON(w, reqLog, http.StatusOK, rec)
	})

	// conversations: paged listing, optional person filter
	mux.HandleFunc("/conversations", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "conversations")
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			http.Error(w, "missing user_id", http.StatusBadRequest)
			return
		}
		limit := intParam(r, "limit", 50)
		offset := intParam(r, "offset", 0)
		res, err := store.List(userID, r.URL.Query().Get("person"), limit, offset)
		if err != nil {
			reqLog.WithError(err).Error("listing failed")
			http.Error(w, "listing failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, reqLog, http.StatusOK, res)
	})

	// conversation: fetch or delete one record
	mux.HandleFunc("/conversation", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "conversation")
		userID := r.URL.Query().Get("user_id")
		recordID := r.URL.Query().Get("id")
		if userID == "" || recordID == "" {
			http.Error(w, "user_id and id are required", http.StatusBadRequest)
			return
		}
		switch r.Method {
		case http.MethodGet:
			rec, err := store.Get(userID, recordID)
			if err != nil {
				respondStorageErr(w, reqLog, err)
				return
			}
			writeJSON(w, reqLog, http.StatusOK, rec)
		case http.MethodDelete:
			if err := store.Delete(userID, recordID); err != nil {
				respondStorageErr(w, reqLog, err)
				return
			}
			writeJSON(w, reqLog, http.StatusOK, map[string]string{"deleted": recordID})
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// notes: update the mutable fields of a record
	mux.HandleFunc("/notes", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "notes")
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			UserID   string            `json:"user_id"`
			RecordID string            `json:"record_id"`
			Notes    string            `json:"notes"`
			Metadata map[string]string `json:"metadata"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" || body.RecordID == "" {
			http.Error(w, "user_id and record_id are required", http.StatusBadRequest)
			return
		}
		rec, err := store.UpdateNotes(body.UserID, body.RecordID, body.Notes, body.Metadata)
		if err != nil {
			respondStorageErr(w, reqLog, err)
			return
		}
		writeJSON(w, reqLog, http.StatusOK, rec)
	})

	// stats: per-user storage accounting
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "stats")
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			http.Error(w, "missing user_id", http.StatusBadRequest)
			return
		}
		st, err := store.Stats(userID)
		if err != nil {
			reqLog.WithError(err).Error("stats failed")
			http.Error(w, "stats failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, reqLog, http.StatusOK, st)
	})

	// cleanup: manual retention sweep for one user
	mux.HandleFunc("/cleanup", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "cleanup")
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			http.Error(w, "missing user_id", http.StatusBadRequest)
			return
		}
		res, err := retention.CleanupUser(userID, intParam(r, "age_months", 0))
		if err != nil {
			reqLog.WithError(err).Error("cleanup failed")
			http.Error(w, "cleanup failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, reqLog, http.StatusOK, res)
	})

	// daily-summary: one narrative across a user's conversations for a day
	mux.HandleFunc("/daily-summary", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "daily-summary")
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			http.Error(w, "missing user_id", http.StatusBadRequest)
			return
		}
		day := time.Now().UTC()
		if d := r.URL.Query().Get("date"); d != "" {
			parsed, err := time.Parse("2006-01-02", d)
			if err != nil {
				http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			day = parsed
		}
		res, err := store.List(userID, "", 0, 0)
		if err != nil {
			reqLog.WithError(err).Error("listing failed")
			http.Error(w, "listing failed", http.StatusInternalServerError)
			return
		}
		dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		dayEnd := dayStart.Add(24 * time.Hour)
		records := res.Records[:0:0]
		for _, rec := range res.Records {
			if ts := rec.Timestamp.UTC(); !ts.Before(dayStart) && ts.Before(dayEnd) {
				records = append(records, rec)
			}
		}
		text, err := summarizer.SummarizeDay(r.Context(), records)
		if err != nil {
			reqLog.WithError(err).Error("daily summary failed")
			http.Error(w, "daily summary failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, reqLog, http.StatusOK, map[string]any{
			"user_id":       userID,
			"date":          dayStart.Format("2006-01-02"),
			"conversations": len(records),
			"summary":       text,
		})
	})

	// report: XLSX storage report across all users
	mux.HandleFunc("/report", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "report")
		f, err := reporter.Build()
		if err != nil {
			reqLog.WithError(err).Error("report failed")
			http.Error(w, "report failed", http.StatusInternalServerError)
			return
		}
		defer f.Close()
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="storage-report.xlsx"`)
		if err := f.Write(w); err != nil {
			reqLog.WithError(err).Error("failed to stream report")
		}
	})

	addr := fmt.Sprintf(":%s", envOr("PORT", "8080"))
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server terminated")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}
	if watch != nil {
		watch.Stop()
	}
	retention.Stop()
	log.Info("stopped")
}

func writeJSON(w http.ResponseWriter, log *logrus.Entry, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}

func respondStorageErr(w http.ResponseWriter, log *logrus.Entry, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "record not found", http.StatusNotFound)
		return
	}
	log.WithError(err).Error("storage operation failed")
	http.Error(w, "storage operation failed", http.StatusInternalServerError)
}

func intParam(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
