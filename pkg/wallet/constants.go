package wallet

const (
	operationCredit     = "credit"
	operationDebit      = "debit"
	operationCreditOnce = "credit_once"

	operationStatusOK      = "ok"
	operationStatusError   = "error"
	operationStatusSkipped = "skipped"
)
