package toolbox

import "slices"

// identifyAuthRequirements partitions a tool's outstanding auth requirements
// against the available auth services.
//
// An authenticated parameter is satisfied when ANY of its acceptable services
// is available; every available service on its acceptable list is recorded as
// used, not only the first match. An authorization token is satisfied only by
// its own service. Satisfied requirements are removed; outstanding ones keep
// their full original service lists.
//
// The function is pure: neither input is mutated, and the result does not
// depend on map iteration order.
func identifyAuthRequirements(
	reqAuthnParams map[string][]string,
	reqAuthzTokens []string,
	available []string,
) (map[string][]string, []string, map[string]struct{}) {
	avail := make(map[string]struct{}, len(available))
	for _, svc := range available {
		avail[svc] = struct{}{}
	}

	remainingAuthn := make(map[string][]string)
	used := make(map[string]struct{})

	for param, services := range reqAuthnParams {
		satisfied := false

		for _, svc := range services {
			if _, ok := avail[svc]; ok {
				satisfied = true
				used[svc] = struct{}{}
			}
		}

		if !satisfied {
			remainingAuthn[param] = slices.Clone(services)
		}
	}

	remainingAuthz := make([]string, 0, len(reqAuthzTokens))

	for _, svc := range reqAuthzTokens {
		if _, ok := avail[svc]; ok {
			used[svc] = struct{}{}
		} else {
			remainingAuthz = append(remainingAuthz, svc)
		}
	}

	return remainingAuthn, remainingAuthz, used
}
