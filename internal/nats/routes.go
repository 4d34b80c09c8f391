// Package nats maps event subjects to their durable consumers.
package nats

import (
	"github.com/nats-io/nats.go"

	"github.com/File-Sharing-BondBridg/Share-Service/internal/scan"
	"github.com/File-Sharing-BondBridg/Share-Service/internal/services"
)

// Route binds one subject to one durable consumer.
type Route struct {
	Subject string
	Durable string
	Handler nats.MsgHandler
}

// Routes returns the scan pipeline's consumers.
func Routes(scanner *scan.Scanner, processor *scan.Processor) []Route {
	return []Route{
		{
			Subject: services.SubjectFileUploaded,
			Durable: "share-service-scanner",
			Handler: scanner.HandleUploaded,
		},
		{
			Subject: services.SubjectObjectTagged,
			Durable: "share-service-scan-results",
			Handler: processor.HandleTagged,
		},
	}
}
