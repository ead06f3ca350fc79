/*
Package charter interprets machine-readable governance frameworks.

A framework document declares participants, the roles they may play, the actions each role may
perform, and flows: per-role states whose actions (combined with AND/OR) are carried out over a
secure-messaging protocol. The interpreter answers three questions for a host:

  - Which roles does a participant hold? (RolesOf)
  - May a participant perform an action, and why? (IsAuthorized, Authorize, AuthorizeAs)
  - What does an action require on the wire? (Action, PresentationDefinition)

and drives flow sessions one step at a time (Start, Advance, Run), delegating every protocol
exchange to a ports.ProtocolExecutor supplied by the host.

# Usage

	it, err := charter.New("./aruba.json", charter.WithExecutor(myAgent))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if !it.IsAuthorized(ctx, "did:sov:FK8a5myo4jhh3yDfn4WtbS", "issue_vaccine") {
		log.Fatal("not allowed")
	}

	session, err := it.Start(ctx, map[domain.Role]string{
		"holder":        "did:example:traveler",
		"health_issuer": "did:sov:FK8a5myo4jhh3yDfn4WtbS",
		"travel_issuer": "did:sov:J1pp5Ro5Xf6qtF281xknFs",
	})
	if err != nil {
		log.Fatal(err)
	}
	session, steps, err := it.Run(ctx, session.ID)

Evaluation is default deny: an action nobody was granted is refused, with a domain.Decision
listing how every privilege rule fared.
*/
package charter
