/*
Package dsl provides a Go DSL (Domain Specific Language) for programmatically constructing governance frameworks.

It allows developers to define participants, roles, privileges and flows using a type-safe, fluent builder
instead of a JSON or YAML document. This is particularly useful for tests and for hosts that derive
their framework from another source.

Example usage:

	b := dsl.New("Library", "1.0")
	b.Participant("did:example:library", "City Library").
		Participant("did:example:reader", "Reader").
		Assign("lender", "did:example:library").
		Assign("member", "did:example:reader").
		Allow("member", "connect").
		Allow("lender", "issue_card")

	b.Action("connect", "https://didcomm.org/connections/1.0/")
	b.Action("issue_card", "https://didcomm.org/issue-credential/1.0/")

	b.State("join").Role("member").Initial().
		Do(dsl.With("connect", "lender")).
		Go("issue")
	b.State("issue").Role("lender").
		RequireConnection("member").
		Do(domain.Leaf("issue_card"))

	// The resulting loader can be passed to charter.New(...)
	loader, err := b.Build()
*/
package dsl
