package service

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"rebooked-marketplace/internal/core/domain"
)

// Template names used by the lifecycle and sweeper.
const (
	TplPaymentConfirmedBuyer  = "payment_confirmed_buyer"
	TplNewOrderSeller         = "new_order_seller"
	TplOrderCommittedBuyer    = "order_committed_buyer"
	TplCourierScheduledBuyer  = "courier_scheduled_buyer"
	TplCourierScheduledSeller = "courier_scheduled_seller"
	TplCourierBookingFailed   = "courier_booking_failed_seller"
	TplOrderDeclinedBuyer     = "order_declined_buyer"
	TplOrderDeclinedSeller    = "order_declined_seller"
	TplOrderExpiredBuyer      = "order_expired_buyer"
	TplOrderExpiredSeller     = "order_expired_seller"
	TplOrderCancelledBuyer    = "order_cancelled_buyer"
	TplOrderCancelledSeller   = "order_cancelled_seller"
	TplOrderCollectedBuyer    = "order_collected_buyer"
	TplOrderDeliveredSeller   = "order_delivered_seller"
	TplDeliveryAutoMarked     = "delivery_auto_marked"
	TplAdminCollectionTimeout = "admin_collection_timeout"
	TplAdminDeliveryFlagged   = "admin_delivery_timeout_flagged"
	TplAdminAutoExpireSummary = "admin_auto_expire_summary"
	TplAdminRefundFailed      = "admin_refund_failed"
	TplOrderUnavailableBuyer  = "order_unavailable_buyer"
	TplAdminBookAlreadySold   = "admin_book_already_sold"
)

type emailTemplate struct {
	kind    domain.NotificationType
	subject string
	html    string
	text    string
}

const htmlLayout = `<!DOCTYPE html><html><body style="font-family:Arial,sans-serif;color:#1f2937">
<h2 style="color:#3b82f6">ReBooked Solutions</h2>
{{template "body" .}}
<p style="color:#6b7280;font-size:12px">This is an automated message from ReBooked Solutions.</p>
</body></html>`

var emailTemplates = map[string]emailTemplate{
	TplPaymentConfirmedBuyer: {
		kind:    domain.NotificationPayment,
		subject: "Payment received for order {{.OrderID}}",
		html:    `<p>Hi {{.Name}},</p><p>We received your payment of <b>{{.Amount}}</b> for {{join .Books ", "}}. The seller has 48 hours to confirm.</p>`,
		text:    "Hi {{.Name}}, we received your payment of {{.Amount}} for {{join .Books \", \"}}. The seller has 48 hours to confirm.",
	},
	TplNewOrderSeller: {
		kind:    domain.NotificationOrder,
		subject: "New order {{.OrderID}}: please commit within 48 hours",
		html:    `<p>Hi {{.Name}},</p><p>You sold {{join .Books ", "}} for <b>{{.Amount}}</b>. Commit the order before {{.Deadline}} or it will be cancelled and refunded.</p>`,
		text:    "Hi {{.Name}}, you sold {{join .Books \", \"}} for {{.Amount}}. Commit before {{.Deadline}} or the order is cancelled and refunded.",
	},
	TplOrderCommittedBuyer: {
		kind:    domain.NotificationOrder,
		subject: "Your order {{.OrderID}} was confirmed",
		html:    `<p>Hi {{.Name}},</p><p>The seller confirmed your order for {{join .Books ", "}}. We are booking the courier now.</p>`,
		text:    "Hi {{.Name}}, the seller confirmed your order for {{join .Books \", \"}}. We are booking the courier now.",
	},
	TplCourierScheduledBuyer: {
		kind:    domain.NotificationDelivery,
		subject: "Courier booked for order {{.OrderID}}",
		html:    `<p>Hi {{.Name}},</p><p>Your books are on the way. Waybill <b>{{.Waybill}}</b>, estimated delivery {{.EstimatedDelivery}}.</p>`,
		text:    "Hi {{.Name}}, your books are on the way. Waybill {{.Waybill}}, estimated delivery {{.EstimatedDelivery}}.",
	},
	TplCourierScheduledSeller: {
		kind:    domain.NotificationDelivery,
		subject: "Courier collection booked for order {{.OrderID}}",
		html:    `<p>Hi {{.Name}},</p><p>The courier will collect on {{.PickupDate}}. Waybill <b>{{.Waybill}}</b>. Please have the books packed.</p>`,
		text:    "Hi {{.Name}}, the courier will collect on {{.PickupDate}}. Waybill {{.Waybill}}. Please have the books packed.",
	},
	TplCourierBookingFailed: {
		kind:    domain.NotificationDelivery,
		subject: "We could not book a courier for order {{.OrderID}}",
		html:    `<p>Hi {{.Name}},</p><p>Your order is committed but the courier booking failed. Please retry scheduling the courier from your orders page.</p>`,
		text:    "Hi {{.Name}}, your order is committed but the courier booking failed. Please retry scheduling the courier.",
	},
	TplOrderDeclinedBuyer: {
		kind:    domain.NotificationRefund,
		subject: "Order {{.OrderID}} was declined",
		html:    `<p>Hi {{.Name}},</p><p>The seller declined your order{{if .Reason}} ({{.Reason}}){{end}}. A refund of <b>{{.Amount}}</b> is on its way.</p>`,
		text:    "Hi {{.Name}}, the seller declined your order{{if .Reason}} ({{.Reason}}){{end}}. A refund of {{.Amount}} is on its way.",
	},
	TplOrderDeclinedSeller: {
		kind:    domain.NotificationOrder,
		subject: "You declined order {{.OrderID}}",
		html:    `<p>Hi {{.Name}},</p><p>The order was declined and your listing for {{join .Books ", "}} is available again.</p>`,
		text:    "Hi {{.Name}}, the order was declined and {{join .Books \", \"}} is listed again.",
	},
	TplOrderExpiredBuyer: {
		kind:    domain.NotificationRefund,
		subject: "Order {{.OrderID}} expired",
		html:    `<p>Hi {{.Name}},</p><p>The seller did not confirm within 48 hours. A refund of <b>{{.Amount}}</b> is on its way.</p>`,
		text:    "Hi {{.Name}}, the seller did not confirm within 48 hours. A refund of {{.Amount}} is on its way.",
	},
	TplOrderExpiredSeller: {
		kind:    domain.NotificationOrder,
		subject: "Order {{.OrderID}} expired",
		html:    `<p>Hi {{.Name}},</p><p>You did not commit to the order in time, so it was cancelled and the buyer refunded. {{join .Books ", "}} is listed again.</p>`,
		text:    "Hi {{.Name}}, you did not commit in time, so the order was cancelled and the buyer refunded.",
	},
	TplOrderCancelledBuyer: {
		kind:    domain.NotificationRefund,
		subject: "Order {{.OrderID}} cancelled",
		html:    `<p>Hi {{.Name}},</p><p>Your order was cancelled. A refund of <b>{{.Amount}}</b> is on its way.</p>`,
		text:    "Hi {{.Name}}, your order was cancelled. A refund of {{.Amount}} is on its way.",
	},
	TplOrderCancelledSeller: {
		kind:    domain.NotificationOrder,
		subject: "Order {{.OrderID}} cancelled by the buyer",
		html:    `<p>Hi {{.Name}},</p><p>The buyer cancelled the order{{if .Reason}} ({{.Reason}}){{end}}. {{join .Books ", "}} is listed again.</p>`,
		text:    "Hi {{.Name}}, the buyer cancelled the order{{if .Reason}} ({{.Reason}}){{end}}.",
	},
	TplOrderCollectedBuyer: {
		kind:    domain.NotificationDelivery,
		subject: "Order {{.OrderID}} collected by the courier",
		html:    `<p>Hi {{.Name}},</p><p>The courier collected your books. Please confirm delivery once they arrive.</p>`,
		text:    "Hi {{.Name}}, the courier collected your books. Please confirm delivery once they arrive.",
	},
	TplOrderDeliveredSeller: {
		kind:    domain.NotificationDelivery,
		subject: "Order {{.OrderID}} delivered",
		html:    `<p>Hi {{.Name}},</p><p>The buyer confirmed delivery of {{join .Books ", "}}. Thank you for selling on ReBooked.</p>`,
		text:    "Hi {{.Name}}, the buyer confirmed delivery of {{join .Books \", \"}}.",
	},
	TplDeliveryAutoMarked: {
		kind:    domain.NotificationDelivery,
		subject: "Order {{.OrderID}} marked as delivered",
		html:    `<p>Hi {{.Name}},</p><p>Delivery was not confirmed within {{.Days}} days of collection, so the order was marked as delivered.</p>`,
		text:    "Hi {{.Name}}, delivery was not confirmed within {{.Days}} days of collection, so the order was marked as delivered.",
	},
	TplAdminCollectionTimeout: {
		kind:    domain.NotificationAdmin,
		subject: "Collection timeout on order {{.OrderID}}",
		html:    `<p>Order {{.OrderID}} was scheduled for collection on {{.PickupDate}} and never collected. Waybill {{.Waybill}}. Manual follow-up needed.</p>`,
		text:    "Order {{.OrderID}} was scheduled for collection on {{.PickupDate}} and never collected. Waybill {{.Waybill}}.",
	},
	TplAdminDeliveryFlagged: {
		kind:    domain.NotificationAdmin,
		subject: "Delivery unconfirmed on order {{.OrderID}}",
		html:    `<p>Order {{.OrderID}} was collected on {{.CollectedAt}} and delivery is still unconfirmed after {{.Days}} days.</p>`,
		text:    "Order {{.OrderID}} was collected on {{.CollectedAt}} and delivery is still unconfirmed after {{.Days}} days.",
	},
	TplAdminAutoExpireSummary: {
		kind:    domain.NotificationAdmin,
		subject: "Auto-expire: {{.Expired}} expired, {{.Failed}} failed",
		html: `<p>Processed {{.Processed}} stale orders. Refunds issued: <b>{{.RefundTotal}}</b>.</p>
<ul>{{range .Entries}}<li>{{.OrderID}}: {{if .Error}}failed ({{.Error}}){{else}}{{.Status}} {{.Amount}}{{end}}</li>{{end}}</ul>
{{if .More}}<p>and {{.More}} more.</p>{{end}}`,
		text: "Processed {{.Processed}} stale orders, {{.Expired}} expired, {{.Failed}} failed. Refunds issued: {{.RefundTotal}}.",
	},
	TplAdminRefundFailed: {
		kind:    domain.NotificationAdmin,
		subject: "Refund failed for order {{.OrderID}}",
		html:    `<p>The gateway refund of {{.Amount}} for order {{.OrderID}} (payment {{.Reference}}) failed: {{.Error}}</p>`,
		text:    "The gateway refund of {{.Amount}} for order {{.OrderID}} failed: {{.Error}}",
	},
	TplOrderUnavailableBuyer: {
		kind:    domain.NotificationRefund,
		subject: "Some books in order {{.OrderID}} are no longer available",
		html:    `<p>Hi {{.Name}},</p><p>{{join .Unavailable ", "}} sold to another buyer before your payment cleared. We cancelled that part of your order and are refunding <b>{{.Amount}}</b>.</p>`,
		text:    "Hi {{.Name}}, {{join .Unavailable \", \"}} sold to another buyer before your payment cleared. We cancelled that part of your order and are refunding {{.Amount}}.",
	},
	TplAdminBookAlreadySold: {
		kind:    domain.NotificationAdmin,
		subject: "Double sale on payment {{.Reference}}",
		html:    `<p>Payment {{.Reference}} paid for {{join .Unavailable ", "}} (seller {{.SellerID}}) after the books were sold. Order {{.OrderID}} was cancelled and {{.Amount}} refunded, refund status {{.RefundStatus}}.</p>`,
		text:    "Payment {{.Reference}} paid for {{join .Unavailable \", \"}} (seller {{.SellerID}}) after the books were sold. Order {{.OrderID}} cancelled, {{.Amount}} refunded, refund status {{.RefundStatus}}.",
	},
}

var templateFuncs = map[string]any{
	"join": func(v any, sep string) string {
		switch s := v.(type) {
		case []string:
			return strings.Join(s, sep)
		case nil:
			return ""
		default:
			return fmt.Sprint(s)
		}
	},
}

type renderedEmail struct {
	Kind    domain.NotificationType
	Subject string
	HTML    string
	Text    string
}

func renderTemplate(name string, data map[string]any) (*renderedEmail, error) {
	tpl, ok := emailTemplates[name]
	if !ok {
		return nil, fmt.Errorf("unknown template %q", name)
	}

	subject, err := renderText(name+".subject", tpl.subject, data)
	if err != nil {
		return nil, err
	}
	text, err := renderText(name+".text", tpl.text, data)
	if err != nil {
		return nil, err
	}

	page, err := htmltemplate.New(name).Funcs(templateFuncs).Parse(htmlLayout)
	if err == nil {
		_, err = page.New("body").Parse(tpl.html)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s.html: %w", name, err)
	}
	var html bytes.Buffer
	if err := page.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("rendering %s.html: %w", name, err)
	}

	return &renderedEmail{Kind: tpl.kind, Subject: subject, HTML: html.String(), Text: text}, nil
}

func renderText(name, src string, data map[string]any) (string, error) {
	t, err := texttemplate.New(name).Funcs(templateFuncs).Parse(src)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.String(), nil
}
