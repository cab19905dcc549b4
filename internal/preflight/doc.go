// Package preflight provides readiness checks for the filesystem paths,
// project document and external binaries natrender depends on.
//
// These checks run in two contexts:
//   - The daemon logs every failing check at start so a broken setup shows
//     up before the first render is submitted.
//   - The CLI "natrender status" command renders the full result list.
package preflight
