// Package manifest models the tree of mirrored projects.
//
// A manifest is a YAML (or JSON) document whose tree-root entry nests further
// tree-<name> entries:
//
//	tree-root:
//	  path: //depot
//	  projects: ["tools|b", "sdk|m=vendor/sdk|s=3"]
//	  clients: [build-client]
//	  trees: [libs]
//	  tree-libs:
//	    projects: ["core", "net|c=build-client", "old|-"]
//
// Local and remote paths are derived by walking a project's ancestry. Load
// flattens the forest into a map keyed by local path and rejects duplicate or
// nested paths.
package manifest
