package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_qr_scans_total",
		Help: "QR scan attempts by outcome",
	}, []string{"outcome"})

	releasesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrow_releases_total",
		Help: "Payments released to owners",
	})

	refundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrow_refunds_total",
		Help: "Payments refunded to customers",
	})

	capturesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrow_gateway_captures_total",
		Help: "Gateway capture confirmations applied",
	})
)
