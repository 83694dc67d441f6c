// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-turbocharger.
//
// go-turbocharger is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsEnabled(t *testing.T) {
	assert.True(t, IsEnabled(), "metrics are enabled by default")

	Disable()
	assert.False(t, IsEnabled())

	Enable()
	assert.True(t, IsEnabled())
}

func TestRecordOperation(t *testing.T) {
	Enable()
	OperationsTotal.Reset()
	OperationDuration.Reset()

	RecordOperation(OpSign, "RS256", StatusSuccess, 0.002)
	RecordOperation(OpSign, "RS256", StatusSuccess, 0.003)
	RecordOperation(OpVerify, "ES256", StatusError, 0.001)

	assert.Equal(t, 2, testutil.CollectAndCount(OperationsTotal))
	assert.Equal(t, 2, testutil.CollectAndCount(OperationDuration))
	assert.Equal(t, 2.0, testutil.ToFloat64(OperationsTotal.WithLabelValues(OpSign, "RS256", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(OperationsTotal.WithLabelValues(OpVerify, "ES256", StatusError)))
}

func TestRecordWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()

	OperationsTotal.Reset()
	ErrorsTotal.Reset()
	KeystoreLoadsTotal.Reset()
	HTTPRequestsTotal.Reset()
	before := testutil.ToFloat64(SnowflakeIDsTotal)

	RecordOperation(OpSign, "HS256", StatusSuccess, 0.1)
	RecordError(OpSign, "HS256", "invalid_signature")
	RecordKeystoreLoad("pkcs12", StatusSuccess)
	RecordHTTPRequest("GET", "200", 0.1)
	RecordSnowflakeIDs(10)

	assert.Equal(t, 0, testutil.CollectAndCount(OperationsTotal))
	assert.Equal(t, 0, testutil.CollectAndCount(ErrorsTotal))
	assert.Equal(t, 0, testutil.CollectAndCount(KeystoreLoadsTotal))
	assert.Equal(t, 0, testutil.CollectAndCount(HTTPRequestsTotal))
	assert.Equal(t, before, testutil.ToFloat64(SnowflakeIDsTotal))
}

func TestRecordError(t *testing.T) {
	Enable()
	ErrorsTotal.Reset()

	RecordError(OpVerify, "SM2", "invalid_signature")
	RecordError(OpVerify, "SM2", "invalid_signature")

	assert.Equal(t, 2.0, testutil.ToFloat64(ErrorsTotal.WithLabelValues(OpVerify, "SM2", "invalid_signature")))
}

func TestRecordKeystoreLoad(t *testing.T) {
	Enable()
	KeystoreLoadsTotal.Reset()

	RecordKeystoreLoad("jks", StatusSuccess)
	RecordKeystoreLoad("pkcs12", StatusError)

	assert.Equal(t, 1.0, testutil.ToFloat64(KeystoreLoadsTotal.WithLabelValues("jks", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(KeystoreLoadsTotal.WithLabelValues("pkcs12", StatusError)))
}

func TestRecordSnowflakeIDs(t *testing.T) {
	Enable()
	before := testutil.ToFloat64(SnowflakeIDsTotal)

	RecordSnowflakeIDs(5)
	RecordSnowflakeIDs(0)
	RecordSnowflakeIDs(-3)

	assert.Equal(t, before+5, testutil.ToFloat64(SnowflakeIDsTotal))
}

func TestSetAlgorithmsConfigured(t *testing.T) {
	Enable()
	SetAlgorithmsConfigured(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(AlgorithmsConfigured))
}

func TestResourceCollector(t *testing.T) {
	Enable()
	rc := NewResourceCollector(time.Second)
	rc.started = time.Now().Add(-time.Minute)
	rc.Collect()

	assert.Greater(t, testutil.ToFloat64(Goroutines), 0.0)
	assert.Greater(t, testutil.ToFloat64(MemoryAllocBytes), 0.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(ServerUptime), 60.0)
}
