// Package compiler resolves a raw policy.Config into a policy.Snapshot.
//
// Resolution runs in five steps:
//
//  1. Complete the defaults: each absent default sub-policy is filled from
//     the built-in constants.
//  2. Validate every field of the completed defaults.
//  3. Merge each command: every sub-policy slot is either the command's own,
//     taken verbatim, or the whole default sub-policy. Fields are never mixed.
//  4. Validate the command's own sub-policies and reject duplicate or empty names.
//  5. Materialise one immutable ResolvedPolicy per command.
//
// Compilation is all-or-nothing. Problems are collected into a
// *policy.ErrorList so a single run reports everything wrong with a
// configuration file:
//
//	snap, err := compiler.Resolve(cfg)
//	if err != nil {
//	    var dup *policy.DuplicateCommandError
//	    if errors.As(err, &dup) {
//	        log.Printf("command %q declared twice", dup.Command)
//	    }
//	    return err
//	}
//
// Resolve is pure: calling it twice on the same input yields snapshots that
// are value-equal, including their version hash.
package compiler
