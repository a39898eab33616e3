// Package interceptors holds ready-made pipeline interceptors: a zerolog logger
// applied around the run and each of its stages, number coercion and rounding
// hooks, and a conditional skip.
package interceptors
