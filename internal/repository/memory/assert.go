package memory

import "goodies-platform/internal/repository"

var (
	_ repository.LedgerRepository  = (*Ledger)(nil)
	_ repository.DonationStore     = (*Store)(nil)
	_ repository.FailureRepository = (*Failures)(nil)
)
