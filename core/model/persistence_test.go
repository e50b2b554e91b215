package model

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

type stubModel struct {
	BaseEstimator
	Weights []float64
	Name    string
}

func TestSaveLoadModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gob")

	m := &stubModel{Weights: []float64{0.5, -1}, Name: "stub"}
	m.SetFitted()
	if err := SaveModel(m, path); err != nil {
		t.Fatalf("SaveModel: %v", err)
	}

	var loaded stubModel
	if err := LoadModel(&loaded, path); err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if !loaded.IsFitted() {
		t.Error("fitted state should survive a round trip")
	}
	if loaded.Name != "stub" || len(loaded.Weights) != 2 || loaded.Weights[1] != -1 {
		t.Errorf("unexpected model after load: %+v", loaded)
	}
}

func TestLoadModelMissingFile(t *testing.T) {
	var m stubModel
	err := LoadModel(&m, filepath.Join(t.TempDir(), "absent.gob"))
	if errors.Code(err) != errors.CodeFileNotFound {
		t.Fatalf("expected FileNotFound, got %v", err)
	}
}

func TestSaveModelRemovesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.gob")
	// Channels cannot be gob-encoded.
	if err := SaveModel(map[string]chan int{"c": make(chan int)}, path); err == nil {
		t.Fatal("expected an encoding error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("partial model file should be removed")
	}
}

func TestLoadModelFromReaderCorrupt(t *testing.T) {
	var m stubModel
	err := LoadModelFromReader(&m, bytes.NewBufferString("not gob"))
	if errors.Code(err) != errors.CodeUnexpectedFailure {
		t.Fatalf("expected UnexpectedFailure, got %v", err)
	}
}

func TestBaseEstimatorReset(t *testing.T) {
	var e BaseEstimator
	e.SetFitted()
	e.Reset()
	if e.IsFitted() {
		t.Error("Reset should return the estimator to NotFitted")
	}
}
