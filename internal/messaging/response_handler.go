package messaging

import (
	"context"
	"log/slog"

	"github.com/EduFluxo/AtendeFlow/internal/models"
)

// MessageProcessor is the pipeline surface inbound messages are fed into.
// The production implementation is the receptionist flow.
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, from, body, establishment string) map[string]any
}

// ReceiptStore persists delivery receipts. The production implementation is
// the conversation store.
type ReceiptStore interface {
	AddReceipt(ctx context.Context, receipt models.Receipt) error
}

// ResponseHandler drains a messaging service's event channels: incoming
// participant messages go through the processor, delivery receipts go to
// the receipt store. Without a running handler the transport's buffers fill
// and events are dropped.
type ResponseHandler struct {
	msgService    Service
	processor     MessageProcessor
	receipts      ReceiptStore
	establishment string
}

// NewResponseHandler creates a handler for the given service. The receipt
// store may be nil, in which case receipts are drained and discarded.
func NewResponseHandler(msgService Service, processor MessageProcessor, receipts ReceiptStore, establishment string) *ResponseHandler {
	return &ResponseHandler{
		msgService:    msgService,
		processor:     processor,
		receipts:      receipts,
		establishment: establishment,
	}
}

// Start begins draining the response and receipt channels. Call once; the
// loops exit when the context is canceled or the channels close.
func (rh *ResponseHandler) Start(ctx context.Context) {
	slog.Info("ResponseHandler starting event processing")
	go rh.processResponses(ctx)
	go rh.processReceipts(ctx)
}

func (rh *ResponseHandler) processResponses(ctx context.Context) {
	defer slog.Info("ResponseHandler stopped response processing")
	for {
		select {
		case response, ok := <-rh.msgService.Responses():
			if !ok {
				slog.Debug("ResponseHandler responses channel closed")
				return
			}
			raw := rh.processor.ProcessMessage(ctx, response.From, response.Body, rh.establishment)
			slog.Debug("ResponseHandler processed incoming message",
				"from", response.From, "intent", raw["intent"], "sent", raw["sent"])
		case <-ctx.Done():
			slog.Debug("ResponseHandler stopping response processing, context canceled")
			return
		}
	}
}

func (rh *ResponseHandler) processReceipts(ctx context.Context) {
	defer slog.Info("ResponseHandler stopped receipt processing")
	for {
		select {
		case receipt, ok := <-rh.msgService.Receipts():
			if !ok {
				slog.Debug("ResponseHandler receipts channel closed")
				return
			}
			if rh.receipts == nil {
				continue
			}
			if err := rh.receipts.AddReceipt(ctx, receipt); err != nil {
				slog.Error("ResponseHandler failed to persist receipt", "error", err, "to", receipt.To)
			}
		case <-ctx.Done():
			slog.Debug("ResponseHandler stopping receipt processing, context canceled")
			return
		}
	}
}
