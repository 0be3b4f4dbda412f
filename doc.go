// Package lettrage provides an automatic lettrage (account reconciliation)
// engine for Go applications.
//
// Lettrage pairs debit and credit lines on customer and supplier sub-ledger
// accounts (classes 40 and 41 of the chart of accounts) and stamps each
// settled group with a shared lettrage code. The engine is a library, not a
// service. It provides:
//
//   - Extraction of reconcilable lines from posted journal entries
//   - Greedy first-fit matching with exact and partial (under 5%) tolerance
//   - A review workflow where suggestions are approved or rejected
//   - Atomic settlement: a line belongs to at most one lettrage group
//   - Reconciliation statistics per date range
//   - Pluggable matching strategies and lifecycle hooks
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/lettrage"
//	    "github.com/xraph/lettrage/store/postgres"
//	)
//
//	eng := lettrage.New(postgres.New(db))
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
// # Core Concepts
//
// Lines are imported either directly or extracted from journal entries:
//
//	n, err := eng.ImportEntries(ctx, entries, lettrage.NewDateRange(from, to))
//
// A matching run proposes suggestions for the unlettered lines of a range:
//
//	suggestions, err := eng.Suggest(ctx, lettrage.NewDateRange(from, to))
//
// Each suggestion is reviewed. Approval letters every member line in one
// atomic step; an approval that lost a race against another settlement
// fails with ErrStaleMatch and the suggestion is discarded:
//
//	err := eng.Approve(ctx, suggestions[0].ID)
//	if lettrage.IsStale(err) {
//	    // refresh and suggest again
//	}
//
// Rejection only marks the suggestion; the next run proposes it again.
//
// # Amounts
//
// All monetary values are integers in the smallest currency unit. Lines in
// different currencies never match.
//
// # TypeID
//
// Matches, runs and lettrage codes use TypeID identifiers:
//
//	match_01h2xcejqtf2nbrexx3vqjhp41  // Match ID (derived from its lines)
//	run_01h2xcejqtf2nbrexx3vqjhp41    // Matching run
//	let_01h455vb4pex5vsknk084sn02q    // Lettrage code
//
// Match IDs are derived from the member line IDs, so the same pair keeps the
// same suggestion across runs.
package lettrage
