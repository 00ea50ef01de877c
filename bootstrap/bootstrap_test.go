package bootstrap

import (
	"context"
	"testing"
	"time"

	"reld/config"
)

func testConfig() *config.KernelConfig {
	cfg := config.DefaultKernelConfig()
	cfg.Txn.DeadlockCheckPeriod = 50 * time.Millisecond
	return cfg
}

func TestStartAssemblesAllSubsystems(t *testing.T) {
	k, err := Start(context.Background(), Options{Config: testConfig()})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer k.Stop()

	if k.Store == nil || k.Reg == nil || k.Env == nil || k.Catalog == nil || k.Txn == nil {
		t.Fatal("expected every subsystem field to be populated")
	}
	if _, ok := k.Catalog.Table("rtables"); !ok {
		t.Error("expected the catalog's system relations to be bootstrapped")
	}
}

func TestServiceLookupByName(t *testing.T) {
	k, err := Start(context.Background(), Options{Config: testConfig()})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer k.Stop()

	svc, serr := k.Service("kernel.catalog")
	if serr != nil {
		t.Fatalf("Service: %v", serr)
	}
	if svc != k.Catalog {
		t.Error("expected kernel.catalog to resolve to the same Catalog instance")
	}

	if _, serr := k.Service("does.not.exist"); serr == nil {
		t.Error("expected an error for an unregistered service name")
	}
}

func TestBeginTxUsesConfiguredIsolation(t *testing.T) {
	k, err := Start(context.Background(), Options{Config: testConfig()})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer k.Stop()

	sess, _, berr := k.BeginTx(context.Background())
	if berr != nil {
		t.Fatalf("BeginTx: %v", berr)
	}
	if sess.Isolation.String() != "SERIALIZABLE" {
		t.Errorf("expected serializable isolation, got %s", sess.Isolation)
	}
	if aerr := k.Txn.Abort(sess); aerr != nil {
		t.Fatalf("Abort: %v", aerr)
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Backend = "not-a-backend"
	if _, err := Start(context.Background(), Options{Config: cfg}); err == nil {
		t.Error("expected Start to reject an invalid configuration")
	}
}
