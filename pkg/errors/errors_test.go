package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, detailsOK: true},
		{code: CodeVersionConflict, status: http.StatusConflict, retryable: true, detailsOK: true},
		{code: CodeInsufficientStock, status: http.StatusConflict, detailsOK: true},
		{code: CodeGateway, status: http.StatusBadGateway, retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeDependency, cause, "load order")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
	if got := wrapped.Error(); got != "DEPENDENCY_ERROR: load order: boom" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestIsCodeWalksNestedErrors(t *testing.T) {
	inner := New(CodeVersionConflict, "stale")
	outer := Wrap(CodeDependency, fmt.Errorf("tx: %w", inner), "update order")

	if !IsCode(outer, CodeVersionConflict) {
		t.Fatalf("expected nested version conflict to be found")
	}
	if IsCode(outer, CodeNotFound) {
		t.Fatalf("unexpected code match")
	}
	if IsCode(nil, CodeInternal) {
		t.Fatalf("nil error must not match")
	}
}

func TestDumpExtractsPostgresDiagnostics(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "orders_number_key", TableName: "orders"}
	d := Dump(Wrap(CodeConflict, pgErr, "insert order"))
	if d.PGCode != "23505" || d.PGConstraint != "orders_number_key" {
		t.Fatalf("unexpected dump %+v", d)
	}
	if d.Code != CodeConflict {
		t.Fatalf("expected conflict code, got %s", d.Code)
	}

	pqErr := &pq.Error{Code: "40001", Table: "product_variants"}
	d = Dump(fmt.Errorf("reduce: %w", pqErr))
	if d.PGCode != "40001" || d.PGTable != "product_variants" {
		t.Fatalf("unexpected pq dump %+v", d)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %d", len(d.Chain))
	}
}
