package workflow

import (
	"strings"

	"docpipe/internals/schemas"
)

const (
	NameDefaultAnalysis = "default_pdf_analysis"
	NameInvoiceExtract  = "project_invoice_extract"
)

// Classifier maps a task to a workflow name. It is a coarse, replaceable
// rule; swapping it for a smarter model does not touch the orchestrator.
type Classifier func(req schemas.TaskRequest) string

// KeywordClassifier mirrors the original selection rule: invoice-looking
// requests go through the invoice workflow, everything else through the
// default analysis pipeline.
func KeywordClassifier(req schemas.TaskRequest) string {
	request := strings.ToLower(req.UserRequest)
	if strings.Contains(request, "invoice") || strings.Contains(request, "fatura") {
		return NameInvoiceExtract
	}
	return NameDefaultAnalysis
}
