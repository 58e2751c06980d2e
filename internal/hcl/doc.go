// Package hcl provides the HCL implementation of the config.Loader and
// config.Converter interfaces.
//
// A configuration file may contain `simulation`, `network` and `scoring`
// blocks and any number of labelled `audit` blocks:
//
//	network {
//	  throughput = 1.6 * mb / 8
//	  rtt        = "150ms"
//	}
//
//	audit "uses-text-compression" {
//	  options {
//	    min_savings_bytes = 1.4 * kb
//	  }
//	}
//
// Expressions can use the variables `kb`, `mb` and `env` (the process
// environment) and a small set of functions from the cty standard library.
package hcl
