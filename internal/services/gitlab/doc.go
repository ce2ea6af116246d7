// Package gitlab records spent time on GitLab issues.
//
// The issue is derived from the branch name: branches named "<iid>-<slug>"
// map to issue iid in the given project. Client posts to the add_spent_time
// endpoint of the GitLab v4 API; Service wraps it for the tracker, logging
// failures instead of returning them.
package gitlab
