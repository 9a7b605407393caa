// Package sampling measures implementation runtimes and decides when
// enough samples have been taken.
//
// The statistics and the adaptive stopping rule are pure functions over
// duration sequences, independent of how sampling is scheduled. The
// Sampler orchestrates repeated runs through a testkit.Adapter: it keeps
// collecting until the running confidence interval for the mean is
// narrower than the target margin, or the sample/time budget runs out.
//
// The first WarmupSamples runs per implementation are discarded before any
// statistic is computed, to avoid cold-cache bias.
package sampling
