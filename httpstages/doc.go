// Package httpstages provides pipeline stages for HTTP requests and response handling.
//
// Get and Fetch perform a GET request asynchronously and are declared with FlowAsync;
// ParseJSON decodes the response body and Expect verifies the decoded result.
//
// Example: GET url → ParseJSON → Expect(predicate)
//
//	d, _ := pipeline.New("check-api", []pipeline.StageSpec{
//		{Kind: pipeline.FlowAsync, Handler: httpstages.Get(nil, "https://api.example.com/status")},
//		{Handler: httpstages.ParseJSON()},
//		{Handler: httpstages.Expect(func(v any) error {
//			m, _ := v.(map[string]any)
//			if m["status"] != "ok" {
//				return fmt.Errorf("unexpected status")
//			}
//			return nil
//		})},
//	})
//	res, _ := d.Flow(ctx, "check")
//	v, err := res.Await(ctx)
package httpstages
