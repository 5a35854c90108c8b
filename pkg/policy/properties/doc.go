// Package properties renders a policy snapshot into the flat key space read
// by Hystrix-style execution libraries.
//
// Keys are typed: a Key is a (Scope, Param) pair and each Param has a fixed
// Kind, so a misspelt parameter is a compile error rather than a silently
// ignored string. Keys render as "<prefix>.<scope>.<param>":
//
//	hystrix.command.default.coreSize=10
//	hystrix.command.orders.coreSize=25
//
// The default scope holds the completed defaults. Each command scope holds
// the command's resolved values; Set.Effective applies the usual
// override-beats-default rule and agrees with the compiler for every command
// and parameter.
package properties
