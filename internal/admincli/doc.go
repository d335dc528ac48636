// Package admincli implements the operator command line for credkeeper:
// blocking and unblocking accounts, confirming emails, setting passwords,
// managing roles, reading the login history, sweeping expired sessions and
// applying migrations.
//
// Global configuration flags (-d, -c and so on) may precede the command;
// they are read by config.LoadConfig and skipped here.
//
//	credkeeper-admin -d postgres://... block 42 chargeback fraud
//	credkeeper-admin history -limit 20 42
package admincli
