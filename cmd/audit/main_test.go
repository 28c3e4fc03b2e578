package main

import (
	"testing"

	"github.com/rmachado/expense-audit/internal/config"
)

func TestCheckPersistFlag(t *testing.T) {
	configured := config.StorageConfig{Project: "acme-audit", Dataset: "audit", FindingsTable: "findings", TransactionsTable: "transactions"}
	unconfigured := config.StorageConfig{}

	if err := checkPersistFlag(true, unconfigured); err == nil {
		t.Error("persist without a storage backend must be rejected")
	}
	if err := checkPersistFlag(true, configured); err != nil {
		t.Errorf("persist with a configured backend rejected: %v", err)
	}
	if err := checkPersistFlag(false, unconfigured); err != nil {
		t.Errorf("plain run without storage rejected: %v", err)
	}
}

func TestIsGCSURI(t *testing.T) {
	if !isGCSURI("gs://bucket/object.csv") {
		t.Error("gs:// path not recognized")
	}
	if isGCSURI("/tmp/transactions.csv") {
		t.Error("local path treated as GCS")
	}
}
