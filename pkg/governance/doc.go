// Package governance compiles a governance framework into an immutable Model and answers
// the three questions the interpreter needs: which roles a participant holds (RolesOf),
// whether it may perform an action (Authorize, IsAuthorized, AuthorizeAs), and how an
// action is carried out (Catalog).
//
// Evaluation is default-deny. Predicates that name unsupported fields, and credential
// checks without a configured ports.CredentialVerifier, evaluate to false.
package governance
