package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"jordanella.com/webcam-touch/internal/calibration"
	"jordanella.com/webcam-touch/internal/database"
	"jordanella.com/webcam-touch/internal/logging"
	"jordanella.com/webcam-touch/internal/touch"
)

func writeFrame(t *testing.T, path string, square bool) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			c := color.RGBA{0, 0, 0, 255}
			if square && x >= 24 && x < 40 && y >= 16 && y < 32 {
				c = color.RGBA{255, 255, 255, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Failed to encode %s: %v", path, err)
	}
}

func TestReplayDirWritesReportAndSession(t *testing.T) {
	root := t.TempDir()
	seqDir := filepath.Join(root, "tap")
	if err := os.MkdirAll(seqDir, 0755); err != nil {
		t.Fatalf("Failed to create sequence dir: %v", err)
	}

	// A square appears on frame 1 and stays still until the touch times out
	for i := 0; i < 5; i++ {
		writeFrame(t, filepath.Join(seqDir, fmt.Sprintf("frame_%03d.png", i)), i > 0)
	}

	db, err := database.Open(filepath.Join(root, "replay.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetLogger(logging.NewLoggerWithOutputs("Database"))
	if err := db.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	opts := replayOptions{
		settings:     calibration.DefaultSettings(),
		tracker:      touch.DefaultTrackerConfig(),
		fps:          30,
		targetWidth:  320,
		targetHeight: 240,
		outDir:       filepath.Join(root, "out"),
		db:           db,
		logger:       logging.NewLoggerWithOutputs("replay"),
	}
	if err := os.MkdirAll(opts.outDir, 0755); err != nil {
		t.Fatalf("Failed to create output dir: %v", err)
	}

	result, err := replayDir(seqDir, opts)
	if err != nil {
		t.Fatalf("replayDir failed: %v", err)
	}

	if result.frames != 5 {
		t.Errorf("Expected 5 frames, got %d", result.frames)
	}
	if result.touches[touch.PhaseBegan] != 1 || result.touches[touch.PhaseEnded] != 1 {
		t.Errorf("Expected one began and one ended, got %v", result.touches)
	}

	f, err := os.Open(result.report)
	if err != nil {
		t.Fatalf("Failed to open report: %v", err)
	}
	defer f.Close()

	var records []touchRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r touchRecord
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			t.Fatalf("Failed to decode report line %q: %v", scanner.Text(), err)
		}
		records = append(records, r)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 report lines, got %d", len(records))
	}
	if records[0].Phase != "began" || records[1].Phase != "ended" {
		t.Errorf("Expected began then ended, got %s, %s", records[0].Phase, records[1].Phase)
	}
	if records[0].ID != records[1].ID {
		t.Errorf("Expected one touch ID, got %s and %s", records[0].ID, records[1].ID)
	}
	if !records[0].InBounds {
		t.Error("Expected the touch inside the uncalibrated area")
	}
	// Centroid of the square: (32/64, 1-24/48)
	if records[0].WebcamX < 0.45 || records[0].WebcamX > 0.55 || records[0].WebcamY < 0.45 || records[0].WebcamY > 0.55 {
		t.Errorf("Unexpected centroid (%.3f, %.3f)", records[0].WebcamX, records[0].WebcamY)
	}

	sessions, err := db.ListSessions(10)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(sessions))
	}
	session := sessions[0]
	if session.Status != database.SessionFinished {
		t.Errorf("Expected finished session, got %s", session.Status)
	}
	if session.FramesProcessed != 5 {
		t.Errorf("Expected 5 frames processed, got %d", session.FramesProcessed)
	}

	counts, err := db.GetTouchPhaseCounts(session.ID)
	if err != nil {
		t.Fatalf("Failed to count touches: %v", err)
	}
	if counts["began"] != 1 || counts["ended"] != 1 {
		t.Errorf("Expected the session to hold both phases, got %v", counts)
	}
}
