// Package authcore is the authentication and account-security engine of the
// volunteer-activity tracking backend. It owns credential verification with
// progressive account lockout, the one-time-passcode password-reset protocol,
// and signed session token issuance.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the [AccountStore] and [MailSender] collaborator interfaces, and the audit
// sink types. Durable account storage, mail delivery, and everything else the
// wider application does (activities, files, notifications) live outside this
// package and are reached only through the injected interfaces.
//
// # Security contract
//
//   - Login failures for unknown accounts and wrong passwords are
//     indistinguishable to the caller; the audit log keeps the distinction.
//   - A locked account is rejected before the password hash is ever computed.
//   - The lockout counter transition is a single conditional update in the
//     account store, never a read-then-write across two round trips.
//   - OTP digests are stored hashed and compared in constant time.
package authcore
