package enrich

var syntheticDescriptions = [...]string{
	`We are looking for a talented Data Analyst to join our growing team.

Key Responsibilities:
• Analyze large datasets to identify trends and patterns
• Create compelling data visualizations and dashboards
• Work with stakeholders to understand business requirements
• Develop automated reporting solutions using Python and SQL
• Present findings to senior management

Requirements:
• 2+ years experience in data analysis
• Proficiency in Python, SQL, and Excel
• Experience with data visualization tools (Tableau, Power BI)
• Strong analytical and problem-solving skills
• Excellent communication skills

We offer competitive salary, flexible working arrangements, and excellent career development opportunities.`,

	`Join our innovative team as a Python Developer! We're building cutting-edge applications that process millions of data points daily.

What you'll do:
• Develop robust Python applications and APIs
• Work with data pipelines and ETL processes
• Collaborate with data scientists and analysts
• Implement automated testing and CI/CD practices
• Optimize application performance and scalability

What we're looking for:
• 3+ years Python development experience
• Knowledge of frameworks like Django, Flask, or FastAPI
• Experience with databases (PostgreSQL, MongoDB)
• Understanding of cloud platforms (AWS, Azure, GCP)
• Passion for clean, maintainable code

Benefits include health insurance, remote work options, learning budget, and stock options.`,

	`Data Scientist position available for a forward-thinking professional to drive insights from complex datasets.

Role Overview:
• Build predictive models and machine learning algorithms
• Extract insights from structured and unstructured data
• Collaborate with product and engineering teams
• Present findings to executive leadership
• Mentor junior team members

Essential Skills:
• Advanced degree in Statistics, Mathematics, or related field
• 4+ years experience in data science
• Expertise in Python, R, and SQL
• Experience with ML frameworks (scikit-learn, TensorFlow, PyTorch)
• Strong business acumen and communication skills

We're offering an excellent package including competitive base salary, performance bonuses, comprehensive benefits, and professional development opportunities.`,
}

// SyntheticDescription returns the template for a row id. Selection is
// (id-1) mod N with a non-negative remainder, so it is stable across runs.
func SyntheticDescription(id int64) string {
	n := int64(len(syntheticDescriptions))
	idx := (id - 1) % n
	if idx < 0 {
		idx += n
	}
	return syntheticDescriptions[idx]
}
