// Package influxdb records health history to an InfluxDB v2 server.
//
// Every device health transition and periodic system summary becomes a
// time-series point, so operators can chart degradation over days and
// weeks rather than only seeing the live view. Writes are non-blocking
// and batched; a slow or absent server never stalls the aggregator.
// The sink is optional: connection failure at startup downgrades to
// running without history.
package influxdb
